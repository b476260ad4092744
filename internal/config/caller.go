package config

import "syscall"

// RlimitEntry pairs an rlimit resource with the value to install, the Go
// shape of change_rlimit[] from spec §6.
type RlimitEntry struct {
	Resource int
	Rlimit   syscall.Rlimit
}

// Caller holds the values configure() populates: per-caller limits and
// toggles applied by the session server during privilege drop and by the
// container assembly for chroot tasks.
type Caller struct {
	ChangeUID1, ChangeUID2 uint32
	ChangeGID1, ChangeGID2 uint32
	ChangeUmask            uint32
	ChangeNice             int

	Rlimits []RlimitEntry

	ShareCallerNetwork bool
	ShareIPC           bool
	ShareUTS           bool

	AllowedMountpoints map[string]string // name -> host path
	ChrootPrefixList   []string
	ChrootPrefixPath   string

	UsePty          bool
	AllowTTYDevices bool

	X11Forwarding bool
	X11Display    int
}

// DefaultCaller returns the conservative per-caller defaults: nothing
// shared, nothing mountable, pty on, X11 off.
func DefaultCaller() Caller {
	return Caller{
		ChangeUmask:        0o22,
		ShareCallerNetwork: false,
		ShareIPC:           false,
		ShareUTS:           false,
		AllowedMountpoints: map[string]string{},
		UsePty:             true,
		AllowTTYDevices:    false,
		X11Forwarding:      false,
		X11Display:         10,
	}
}

// CallerLoader is the external collaborator contract for reading a single
// caller's configuration (merged from global + per-user config files).
type CallerLoader interface {
	LoadCaller(uid uint32) (Caller, error)
}

// ResolveMountpoint looks up a mountpoint name in the allow-list, the
// contract backing the mount/umount task actions.
func (c Caller) ResolveMountpoint(name string) (string, bool) {
	path, ok := c.AllowedMountpoints[name]
	return path, ok
}
