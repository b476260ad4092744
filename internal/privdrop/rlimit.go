package privdrop

import (
	"fmt"
	"syscall"

	"github.com/altlinux/hasher-priv/internal/config"
)

// ApplyRlimits installs each entry of the caller's change_rlimit[] table.
func ApplyRlimits(entries []config.RlimitEntry) error {
	for _, e := range entries {
		rlimit := e.Rlimit
		if err := syscall.Setrlimit(e.Resource, &rlimit); err != nil {
			return fmt.Errorf("setrlimit(%d, %+v): %w", e.Resource, rlimit, err)
		}
	}

	return nil
}
