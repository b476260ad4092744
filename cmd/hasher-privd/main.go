// Command hasher-privd is the broker daemon: the master process and every
// re-exec'd role it spawns (session server, conversation, container-slave)
// all live behind this one binary, selected by a hidden cobra subcommand,
// per spec §4's "process-per-role" architecture. The task worker has no
// subcommand of its own: it runs inside the conversation process.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is the broker's release version, the Go equivalent of
// lxd/shared/version's build-time Version string.
const version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:           "hasher-privd",
		Short:         "privileged task broker daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newSessionServerCmd(),
		newConversationCmd(),
		newContainerSlaveCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hasher-privd: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(priority string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr

	level, err := logrus.ParseLevel(levelName(priority))
	if err != nil {
		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	return log
}

// levelName maps spec §6's configure_server() log priority names onto
// logrus's level names; both vocabularies agree except "warning"/"warn".
func levelName(priority string) string {
	if priority == "warning" {
		return "warn"
	}

	return priority
}
