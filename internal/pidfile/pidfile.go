// Package pidfile writes and removes the daemon's pidfile (spec §6, CLI
// flag -p|--pidfile=FILE).
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Write creates path containing the current process's pid, refusing to
// overwrite a pidfile that still names a live process.
func Write(path string) error {
	if path == "" {
		return nil
	}

	if existing, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(existing))); perr == nil {
			if unix.Kill(pid, 0) == nil {
				return fmt.Errorf("pidfile %s already locked by live pid %d", path, pid)
			}
		}
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Remove deletes path, ignoring a missing file.
func Remove(path string) {
	if path == "" {
		return
	}

	_ = os.Remove(path)
}
