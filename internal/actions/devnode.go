package actions

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// devTable is the fixed table of device nodes makedev may create, name ->
// (major, minor, mode).
var devTable = map[string]struct {
	major, minor uint32
	mode         uint32
}{
	"null":    {1, 3, unix.S_IFCHR | 0o666},
	"zero":    {1, 5, unix.S_IFCHR | 0o666},
	"full":    {1, 7, unix.S_IFCHR | 0o666},
	"random":  {1, 8, unix.S_IFCHR | 0o666},
	"urandom": {1, 9, unix.S_IFCHR | 0o666},
}

// MakeDev creates every device node named in devTable under chroot_path/dev:
// null, zero, full, random, urandom. Unlike maketty/makeconsole it has no
// device-name argument slot (spec §6: "makedev" takes exactly one arg, the
// chroot path), so it populates the whole standard device set in one call
// rather than a single caller-chosen node.
func MakeDev(_ *caller.Data, cfg config.Caller, argv []string, stdio IO) int {
	if len(argv) != 1 {
		fmt.Fprintln(stdio.Stderr, "makedev: exactly one chroot path argument required")
		return exitFailure
	}

	names := make([]string, 0, len(devTable))
	for name := range devTable {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if rc := makeDevNode(cfg, argv[0], "dev/"+name, stdio); rc != exitSuccess {
			return rc
		}
	}

	return exitSuccess
}

// MakeTTY creates a /dev/tty analogue under chroot_path.
func MakeTTY(_ *caller.Data, cfg config.Caller, argv []string, stdio IO) int {
	if len(argv) != 1 {
		fmt.Fprintln(stdio.Stderr, "maketty: exactly one chroot path argument required")
		return exitFailure
	}

	if !cfg.AllowTTYDevices {
		fmt.Fprintln(stdio.Stderr, "maketty: tty devices not permitted for this caller")
		return exitFailure
	}

	return mknodUnder(argv[0], "dev/tty", unix.S_IFCHR|0o666, 5, 0, stdio)
}

// MakeConsole creates a /dev/console analogue under chroot_path.
func MakeConsole(_ *caller.Data, cfg config.Caller, argv []string, stdio IO) int {
	if len(argv) != 1 {
		fmt.Fprintln(stdio.Stderr, "makeconsole: exactly one chroot path argument required")
		return exitFailure
	}

	if !cfg.AllowTTYDevices {
		fmt.Fprintln(stdio.Stderr, "makeconsole: tty devices not permitted for this caller")
		return exitFailure
	}

	return mknodUnder(argv[0], "dev/console", unix.S_IFCHR|0o600, 5, 1, stdio)
}

func makeDevNode(_ config.Caller, chrootPath, rel string, stdio IO) int {
	name := strings.TrimPrefix(rel, "dev/")

	dev, ok := devTable[name]
	if !ok {
		fmt.Fprintf(stdio.Stderr, "makedev: unknown device %q\n", name)
		return exitFailure
	}

	return mknodUnder(chrootPath, rel, dev.mode, dev.major, dev.minor, stdio)
}

func mknodUnder(chrootPath, rel string, mode, major, minor uint32, stdio IO) int {
	target, err := confineUnder(chrootPath, rel)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "mknod: %v\n", err)
		return exitFailure
	}

	dev := unix.Mkdev(major, minor)

	if err := unix.Mknod(target, mode, int(dev)); err != nil {
		fmt.Fprintf(stdio.Stderr, "mknod %s: %v\n", target, err)
		return exitFailure
	}

	return exitSuccess
}

// confineUnder joins rel onto chrootPath and rejects any result that
// lexically escapes it (for example through ".."). The check works on the
// path string only: symlinks under chrootPath are not resolved or checked.
func confineUnder(chrootPath, rel string) (string, error) {
	if !strings.HasPrefix(chrootPath, "/") {
		return "", fmt.Errorf("chroot path %q is not absolute", chrootPath)
	}

	target := filepath.Join(chrootPath, rel)

	cleanRoot := filepath.Clean(chrootPath)
	if target != cleanRoot && !strings.HasPrefix(target, cleanRoot+"/") {
		return "", fmt.Errorf("%q escapes chroot path %q", rel, chrootPath)
	}

	return target, nil
}
