package task

import (
	"fmt"
	"io"
	"os"

	"github.com/altlinux/hasher-priv/internal/actions"
	"github.com/altlinux/hasher-priv/internal/brokerr"
	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/container"
)

// Worker performs exactly one already-validated task: dispatching to a
// simple Action for the non-chroot kinds, or to container.Assemble for
// chrootuid1/chrootuid2.
type Worker struct {
	CallerUID, CallerGID uint32
	Login, Home          string

	SelfExe string

	Record    *Record
	CallerCfg config.Caller
}

// Run dispatches rec.Kind and returns the task's exit status.
func (w *Worker) Run() (int, error) {
	data := &caller.Data{
		UID:     w.CallerUID,
		GID:     w.CallerGID,
		Login:   w.Login,
		HomeDir: w.Home,
	}

	if w.Record.Kind.IsChroot() {
		return w.runChroot(data)
	}

	action, ok := actions.Registry[w.Record.Kind.String()]
	if !ok {
		return 0, brokerr.New(brokerr.Task, "dispatch", fmt.Errorf("no action registered for %s", w.Record.Kind))
	}

	stdio := actions.IO{
		Stdin:  readerOrEmpty(w.Record.Stdin),
		Stdout: writerOrDiscard(w.Record.Stdout),
		Stderr: writerOrDiscard(w.Record.Stderr),
	}

	return action(data, w.CallerCfg, w.Record.CommandArgv(), stdio), nil
}

func readerOrEmpty(f *os.File) io.Reader {
	if f == nil {
		return io.MultiReader()
	}

	return f
}

func writerOrDiscard(f *os.File) io.Writer {
	if f == nil {
		return io.Discard
	}

	return f
}

func (w *Worker) runChroot(data *caller.Data) (int, error) {
	targetUID, targetGID, err := targetIdentity(w.Record.Kind, w.CallerCfg)
	if err != nil {
		return 0, err
	}

	return container.Assemble(w.Record, container.Params{
		Caller:    data,
		Config:    w.CallerCfg,
		Kind:      w.Record.Kind,
		SelfExe:   w.SelfExe,
		TargetUID: targetUID,
		TargetGID: targetGID,
		Home:      w.Home,
		User:      w.Login,
	})
}

// targetIdentity picks the configured change_uid/change_gid pair for
// chrootuid1 vs chrootuid2, spec §6.
func targetIdentity(k Kind, cfg config.Caller) (uid, gid uint32, err error) {
	switch k {
	case KindChrootUID1:
		return cfg.ChangeUID1, cfg.ChangeGID1, nil
	case KindChrootUID2:
		return cfg.ChangeUID2, cfg.ChangeGID2, nil
	default:
		return 0, 0, brokerr.New(brokerr.Task, "target identity", fmt.Errorf("%s is not a chroot task", k))
	}
}
