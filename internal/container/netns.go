package container

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/netutils"
)

// unshareNetworkLate performs the child-only, late network unshare spec §9
// decides on for share_caller_network=true: "unshare in the child even when
// sharing was requested for the parent". Called from the container-slave
// entry point, after the parent (master role) has already been started, so
// the parent continues to observe the caller's original network namespace.
func unshareNetworkLate() error {
	if err := unix.Unshare(unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("unshare network namespace: %w", err)
	}

	return netutils.BringUpLoopback()
}
