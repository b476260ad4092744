// Command hasher-priv is the broker's client: it opens (or reuses) a
// session on the master socket, then runs exactly one task conversation on
// the resulting per-caller session socket, spec §4.1/§4.4.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/altlinux/hasher-priv/internal/task"
)

const masterSocketPath = "/var/run/hasher-priv/hasher-priv"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: hasher-priv [--num N] <task> [args...]")
		return 1
	}

	callerNum := uint32(0)

	if args[0] == "--num" {
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "--num requires a value and a task name")
			return 1
		}

		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --num: %v\n", err)
			return 1
		}

		callerNum = uint32(n)
		args = args[2:]
	}

	taskName := args[0]
	taskArgs := args[1:]

	kind, err := task.ParseKind(taskName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher-priv: %v\n", err)
		return 1
	}

	status, err := runTask(callerNum, kind, taskArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher-priv: %v\n", err)
		return 1
	}

	return status
}

func runTask(callerNum uint32, kind task.Kind, taskArgs []string) (int, error) {
	sessionConn, err := openSession(callerNum)
	if err != nil {
		return 0, fmt.Errorf("open session: %w", err)
	}
	defer sessionConn.Close()

	return runConversation(sessionConn, callerNum, kind, taskArgs)
}
