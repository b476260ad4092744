package container

import (
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/altlinux/hasher-priv/internal/task"
)

// pumpIO runs the parent-side (master role) copy loops between the pty
// master, the stdout/stderr pipes (when !use_pty), and the X11 control
// channel, and the three descriptors the client originally passed in
// TASK_FDS. It returns once every source has reached EOF.
func pumpIO(ptyMaster, pipeOutR, pipeErrR, x11Parent *os.File, rec *task.Record) error {
	var g errgroup.Group

	g.Go(func() error {
		_, err := io.Copy(ptyMaster, rec.Stdin)
		return ignoreEOF(err)
	})

	g.Go(func() error {
		_, err := io.Copy(rec.Stdout, ptyMaster)
		return ignoreEOF(err)
	})

	if pipeOutR != nil {
		g.Go(func() error {
			_, err := io.Copy(rec.Stdout, pipeOutR)
			return ignoreEOF(err)
		})

		g.Go(func() error {
			_, err := io.Copy(rec.Stderr, pipeErrR)
			return ignoreEOF(err)
		})
	}

	if x11Parent != nil {
		// X11 protocol internals are an external collaborator (spec
		// §1). Bytes read from the control channel are drained and
		// discarded; nothing is forwarded to or from it.
		g.Go(func() error {
			_, err := io.Copy(io.Discard, x11Parent)
			return ignoreEOF(err)
		})
	}

	return g.Wait()
}

func ignoreEOF(err error) error {
	if err == io.EOF {
		return nil
	}

	return err
}
