// Package privdrop implements the strictly linear privilege-transition
// state machine from spec §4.6: BOOT -> KEEPCAPS -> CAPSET_PRE -> REUID ->
// CAPSET_POST -> NO_NEW_PRIVS -> READY. Any transition failure is fatal;
// the caller must exit before serving any request.
package privdrop

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// State names the drop state machine's states, in order.
type State int

const (
	Boot State = iota
	Keepcaps
	CapsetPre
	Reuid
	CapsetPost
	NoNewPrivs
	Ready
)

func (s State) String() string {
	return [...]string{"BOOT", "KEEPCAPS", "CAPSET_PRE", "REUID", "CAPSET_POST", "NO_NEW_PRIVS", "READY"}[s]
}

// fixedCaps is the capability set installed twice around the uid switch:
// cap_setgid,cap_setuid,cap_kill,cap_mknod,cap_sys_chroot,cap_sys_admin=ep.
var fixedCaps = []capability.Cap{
	capability.CAP_SETGID,
	capability.CAP_SETUID,
	capability.CAP_KILL,
	capability.CAP_MKNOD,
	capability.CAP_SYS_CHROOT,
	capability.CAP_SYS_ADMIN,
}

// Machine drives the privilege drop and records the last state reached, so
// a caller can report exactly where a fatal failure occurred.
type Machine struct {
	state State
}

// State returns the last state successfully entered.
func (m *Machine) State() State { return m.state }

// Drop performs the full transition from BOOT to READY for the given
// target uid/gid. It mutates process-wide credentials and capabilities and
// must only be called once, from the session server's init sequence.
func (m *Machine) Drop(uid, gid uint32) error {
	steps := []struct {
		state State
		fn    func(uid, gid uint32) error
	}{
		{Keepcaps, func(uint32, uint32) error { return setKeepCaps(true) }},
		{CapsetPre, func(uint32, uint32) error { return installCaps() }},
		{Reuid, dropToUID},
		{CapsetPost, func(uint32, uint32) error { return installCaps() }},
		{NoNewPrivs, func(uint32, uint32) error { return setNoNewPrivs() }},
	}

	if err := setgroups0(); err != nil {
		return brokerr.New(brokerr.Privilege, "setgroups", err)
	}

	if err := unix.Setgid(int(gid)); err != nil {
		return brokerr.New(brokerr.Privilege, "setgid", err)
	}

	for _, step := range steps {
		if err := step.fn(uid, gid); err != nil {
			return brokerr.New(brokerr.Privilege, fmt.Sprintf("privilege drop at %s", step.state), err)
		}

		m.state = step.state
	}

	m.state = Ready

	return nil
}

func setgroups0() error {
	return unix.Setgroups(nil)
}

func setKeepCaps(keep bool) error {
	var v uintptr
	if keep {
		v = 1
	}

	return unix.Prctl(unix.PR_SET_KEEPCAPS, v, 0, 0, 0)
}

// installCaps installs the fixed capability set into the effective and
// permitted sets. CAPSET_POST must re-run this after setreuid because
// dropping to a non-root uid clears the permitted set unless KEEPCAPS was
// set beforehand.
func installCaps() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}

	if err := caps.Load(); err != nil {
		return err
	}

	caps.Clear(capability.CAPS)
	caps.Set(capability.EFFECTIVE|capability.PERMITTED, fixedCaps...)

	return caps.Apply(capability.CAPS)
}

// dropToUID uses setreuid(u, u) (both real and effective) so the process
// can never re-escalate back to root.
func dropToUID(uid, _ uint32) error {
	return unix.Setreuid(int(uid), int(uid))
}

func setNoNewPrivs() error {
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}
