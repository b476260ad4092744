package actions

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
)

// KillUID takes no arguments (spec §6: "killuid" has 0 required args) and
// sends SIGKILL to every process running as either of the caller's
// configured chrootuid1/chrootuid2 target uids, refusing any below
// caller.MinChangeUID. It never acts on a caller-supplied uid: that would
// let an unprivileged caller use the session's retained cap_kill to kill
// any process on the system by naming its uid.
func KillUID(_ *caller.Data, cfg config.Caller, _ []string, stdio IO) int {
	total := 0

	for _, uid := range []uint32{cfg.ChangeUID1, cfg.ChangeUID2} {
		if uid < caller.MinChangeUID {
			fmt.Fprintf(stdio.Stderr, "killuid: refusing to kill uid %d below minimum %d\n", uid, caller.MinChangeUID)
			return exitFailure
		}

		killed, err := killProcessesOfUID(uid)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "killuid: %v\n", err)
			return exitFailure
		}

		total += killed
	}

	fmt.Fprintf(stdio.Stdout, "killed %d process(es)\n", total)

	return exitSuccess
}

func killProcessesOfUID(uid uint32) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("read /proc: %w", err)
	}

	killed := 0
	self := os.Getpid()

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		if pid == self {
			continue
		}

		procUID, ok := readProcUID(pid)
		if !ok || procUID != uid {
			continue
		}

		if err := unix.Kill(pid, unix.SIGKILL); err == nil {
			killed++
		}
	}

	return killed, nil
}

func readProcUID(pid int) (uint32, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}

		uid, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return 0, false
		}

		return uint32(uid), true
	}

	return 0, false
}
