package wire

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// SendFds sends stdin, stdout, stderr as an SCM_RIGHTS ancillary message
// along with a single dummy data byte, matching spec's TASK_FDS payload.
func SendFds(conn *net.UnixConn, stdin, stdout, stderr int) error {
	rights := unix.UnixRights(stdin, stdout, stderr)

	f, err := conn.File()
	if err != nil {
		return brokerr.New(brokerr.Resource, "send fds", err)
	}
	defer f.Close()

	if err := unix.Sendmsg(int(f.Fd()), []byte{0}, rights, nil, 0); err != nil {
		return brokerr.New(brokerr.Resource, "send fds", err)
	}

	return nil
}

// RecvFds reads one TASK_FDS message and returns the three descriptors in
// (stdin, stdout, stderr) order. It consumes dataLen bytes of regular data.
func RecvFds(conn *net.UnixConn, dataLen int) (stdin, stdout, stderr *os.File, err error) {
	f, err := conn.File()
	if err != nil {
		return nil, nil, nil, brokerr.New(brokerr.Resource, "recv fds", err)
	}
	defer f.Close()

	oob := make([]byte, unix.CmsgSpace(3*4))
	data := make([]byte, dataLen)

	n, oobn, _, _, err := unix.Recvmsg(int(f.Fd()), data, oob, 0)
	if err != nil {
		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", err)
	}

	if n != dataLen {
		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", fmt.Errorf("short data read: got %d want %d", n, dataLen))
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", err)
	}

	if len(msgs) != 1 {
		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", fmt.Errorf("expected 1 control message, got %d", len(msgs)))
	}

	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", err)
	}

	if len(fds) != 3 {
		for _, fd := range fds {
			_ = unix.Close(fd)
		}

		return nil, nil, nil, brokerr.New(brokerr.Protocol, "recv fds", fmt.Errorf("expected 3 fds, got %d", len(fds)))
	}

	return os.NewFile(uintptr(fds[0]), "stdin"),
		os.NewFile(uintptr(fds[1]), "stdout"),
		os.NewFile(uintptr(fds[2]), "stderr"),
		nil
}
