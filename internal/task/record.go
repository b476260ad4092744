package task

import (
	"fmt"
	"os"
	"strings"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// Record is the transient, incrementally-built state of one task
// conversation. Spec §3 "Task" invariants (a) and (c) are enforced here;
// invariant (b) is checked when the chroot container is assembled.
type Record struct {
	Kind Kind

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Argv []string
	Envp []string

	ChrootPath string
}

// SetFds installs new stdio descriptors, closing any previously installed
// ones first (invariant (c): "fd slots may be replaced but each replacement
// closes the prior descriptor").
func (r *Record) SetFds(stdin, stdout, stderr *os.File) {
	closeIfSet(r.Stdin)
	closeIfSet(r.Stdout)
	closeIfSet(r.Stderr)

	r.Stdin, r.Stdout, r.Stderr = stdin, stdout, stderr
}

func closeIfSet(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}

// Close releases any descriptors still held by the record.
func (r *Record) Close() {
	closeIfSet(r.Stdin)
	closeIfSet(r.Stdout)
	closeIfSet(r.Stderr)

	r.Stdin, r.Stdout, r.Stderr = nil, nil, nil
}

// SetArgv validates argv's arity (invariant (a)) and installs it; for
// chroot tasks it records argv[0] as the chroot path. No path is checked
// for being absolute here: CheckChrootPath checks the chroot path, and the
// command's own argv[0] is checked by the container package.
func (r *Record) SetArgv(argv []string) error {
	if err := r.Kind.CheckArity(len(argv)); err != nil {
		return brokerr.New(brokerr.Validation, "task arguments", err)
	}

	r.Argv = argv

	if r.Kind.IsChroot() && len(argv) > 0 {
		r.ChrootPath = argv[0]
	}

	return nil
}

// SetEnvp installs the environment vector.
func (r *Record) SetEnvp(envp []string) {
	r.Envp = envp
}

// CheckChrootPath enforces worker-sequence step 5: "chroot_path == NULL ||
// chroot_path[0] == '/'".
func (r *Record) CheckChrootPath() error {
	if r.ChrootPath == "" {
		return nil
	}

	if !strings.HasPrefix(r.ChrootPath, "/") {
		return brokerr.New(brokerr.Validation, "chroot path", fmt.Errorf("chroot path %q is not absolute", r.ChrootPath))
	}

	return nil
}

// CommandArgv returns the argv to pass to the task command, stripping the
// leading chroot-path argument for chrootuid{1,2} tasks.
func (r *Record) CommandArgv() []string {
	if r.Kind.IsChroot() && len(r.Argv) > 0 {
		return r.Argv[1:]
	}

	return r.Argv
}
