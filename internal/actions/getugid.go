package actions

import (
	"fmt"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// GetUGid1 reports the caller's own (uid, gid) pair.
func GetUGid1(c *caller.Data, _ config.Caller, _ []string, stdio IO) int {
	fmt.Fprintf(stdio.Stdout, "%d:%d\n", c.UID, c.GID)
	return exitSuccess
}

// GetUGid2 reports the target identity a chrootuid2 task would run as.
func GetUGid2(_ *caller.Data, cfg config.Caller, _ []string, stdio IO) int {
	fmt.Fprintf(stdio.Stdout, "%d:%d\n", cfg.ChangeUID2, cfg.ChangeGID2)
	return exitSuccess
}
