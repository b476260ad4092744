package container

import (
	"os"

	"golang.org/x/sys/unix"
)

// newX11ControlPair creates the AF_UNIX/SOCK_STREAM socketpair used to relay
// the X11 forwarding control channel, spec §4.5 step 6.
func newX11ControlPair() (parentEnd, childEnd *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}

	return os.NewFile(uintptr(fds[0]), "x11-parent"), os.NewFile(uintptr(fds[1]), "x11-child"), nil
}
