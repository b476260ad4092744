package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/session"
)

// inheritedConnFD is the fd slot the master hands the session server its
// accepted OPEN_SESSION connection on via exec.Cmd.ExtraFiles.
const inheritedConnFD = 3

func newSessionServerCmd() *cobra.Command {
	var uid, gid, num uint32

	cmd := &cobra.Command{
		Use:    "__session-server",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionServer(uid, gid, num)
		},
	}

	flags := cmd.Flags()
	flags.Uint32Var(&uid, "uid", 0, "")
	flags.Uint32Var(&gid, "gid", 0, "")
	flags.Uint32Var(&num, "num", 0, "")

	return cmd
}

func runSessionServer(uid, gid, num uint32) error {
	log := newLogger("info")

	selfExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve self executable: %w", err)
	}

	// The loader for per-caller configuration files is an external
	// collaborator (SPEC_FULL.md AMBIENT STACK); config.DefaultCaller is
	// the hook point a real config.CallerLoader implementation plugs
	// into.
	callerCfg := config.DefaultCaller()

	srv := &session.Server{
		CallerUID:      uid,
		CallerGID:      gid,
		CallerNum:      num,
		SelfExe:        selfExe,
		SessionTimeout: 10 * time.Minute,
		CallerCfg:      callerCfg,
		MasterConn:     os.NewFile(inheritedConnFD, "master-conn"),
		Log:            log.WithField("role", "session-server"),
	}

	return srv.Run()
}
