package actions

import (
	"fmt"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// GetConf dumps the caller's resolved configuration as key=value lines, for
// debugging a caller's effective configuration.
func GetConf(_ *caller.Data, cfg config.Caller, _ []string, stdio IO) int {
	fmt.Fprintf(stdio.Stdout, "change_uid1=%d\n", cfg.ChangeUID1)
	fmt.Fprintf(stdio.Stdout, "change_gid1=%d\n", cfg.ChangeGID1)
	fmt.Fprintf(stdio.Stdout, "change_uid2=%d\n", cfg.ChangeUID2)
	fmt.Fprintf(stdio.Stdout, "change_gid2=%d\n", cfg.ChangeGID2)
	fmt.Fprintf(stdio.Stdout, "change_umask=0%o\n", cfg.ChangeUmask)
	fmt.Fprintf(stdio.Stdout, "change_nice=%d\n", cfg.ChangeNice)
	fmt.Fprintf(stdio.Stdout, "share_caller_network=%t\n", cfg.ShareCallerNetwork)
	fmt.Fprintf(stdio.Stdout, "share_ipc=%t\n", cfg.ShareIPC)
	fmt.Fprintf(stdio.Stdout, "share_uts=%t\n", cfg.ShareUTS)
	fmt.Fprintf(stdio.Stdout, "use_pty=%t\n", cfg.UsePty)
	fmt.Fprintf(stdio.Stdout, "allow_tty_devices=%t\n", cfg.AllowTTYDevices)
	fmt.Fprintf(stdio.Stdout, "x11_forwarding=%t\n", cfg.X11Forwarding)
	fmt.Fprintf(stdio.Stdout, "chroot_prefix_path=%s\n", cfg.ChrootPrefixPath)

	for name, path := range cfg.AllowedMountpoints {
		fmt.Fprintf(stdio.Stdout, "allowed_mountpoint[%s]=%s\n", name, path)
	}

	return exitSuccess
}
