package actions

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// Mount bind-mounts the resolved host path for a named, allow-listed
// mountpoint onto chroot_path/<name>.
func Mount(_ *caller.Data, cfg config.Caller, argv []string, stdio IO) int {
	if len(argv) != 2 {
		fmt.Fprintln(stdio.Stderr, "mount: chroot path and mountpoint name required")
		return exitFailure
	}

	chrootPath, name := argv[0], argv[1]

	hostPath, ok := cfg.ResolveMountpoint(name)
	if !ok {
		fmt.Fprintf(stdio.Stderr, "mount: mountpoint %q not in allowed_mountpoints\n", name)
		return exitFailure
	}

	target, err := confineUnder(chrootPath, name)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "mount: %v\n", err)
		return exitFailure
	}

	if err := unix.Mount(hostPath, target, "", unix.MS_BIND, ""); err != nil {
		fmt.Fprintf(stdio.Stderr, "mount %s -> %s: %v\n", hostPath, target, err)
		return exitFailure
	}

	return exitSuccess
}

// Umount unmounts cfg.ChrootPrefixPath/<name> for an allow-listed
// mountpoint name. It takes no chroot path argument, so the target is not
// resolved against the chroot path a preceding Mount used.
func Umount(_ *caller.Data, cfg config.Caller, argv []string, stdio IO) int {
	if len(argv) != 1 {
		fmt.Fprintln(stdio.Stderr, "umount: mountpoint name required")
		return exitFailure
	}

	name := argv[0]

	if _, ok := cfg.ResolveMountpoint(name); !ok {
		fmt.Fprintf(stdio.Stderr, "umount: mountpoint %q not in allowed_mountpoints\n", name)
		return exitFailure
	}

	target := filepath.Join(cfg.ChrootPrefixPath, name)

	if err := unix.Unmount(target, 0); err != nil {
		fmt.Fprintf(stdio.Stderr, "umount %s: %v\n", target, err)
		return exitFailure
	}

	return exitSuccess
}
