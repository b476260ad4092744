// Package actions implements the task action contracts spec §1 and §6 leave
// as external collaborators, plus the supplemental contracts recovered from
// original_source/hasher-priv (see SPEC_FULL.md "SUPPLEMENTED FEATURES").
// Each action receives the caller identity, the caller's resolved
// configuration, and the task's already-validated argv, and returns the
// process exit status to report back through the task worker.
package actions

import (
	"io"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// IO bundles the stdio streams a non-chroot action reads/writes.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Action is one non-chroot task's contract: given the caller, its config,
// and the task's argv (with the task name stripped), perform the task and
// return an exit status.
type Action func(c *caller.Data, cfg config.Caller, argv []string, stdio IO) int

// Registry maps non-chroot task names to their Action.
var Registry = map[string]Action{
	"getconf":     GetConf,
	"killuid":     KillUID,
	"getugid1":    GetUGid1,
	"getugid2":    GetUGid2,
	"makedev":     MakeDev,
	"maketty":     MakeTTY,
	"makeconsole": MakeConsole,
	"mount":       Mount,
	"umount":      Umount,
}

const (
	exitSuccess = 0
	exitFailure = 1
)
