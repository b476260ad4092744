package main

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/task"
)

// inheritedTaskConnFD is the fd slot the session server hands the
// conversation process its accepted connection on.
const inheritedTaskConnFD = 3

func newConversationCmd() *cobra.Command {
	var uid, gid, num uint32
	var login, home string

	cmd := &cobra.Command{
		Use:    "__conversation",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(uid, gid, num, login, home)
		},
	}

	flags := cmd.Flags()
	flags.Uint32Var(&uid, "uid", 0, "")
	flags.Uint32Var(&gid, "gid", 0, "")
	flags.Uint32Var(&num, "num", 0, "")
	flags.StringVar(&login, "login", "", "")
	flags.StringVar(&home, "home", "", "")

	return cmd
}

func runConversation(uid, gid, num uint32, login, home string) error {
	log := newLogger("info")

	selfExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve self executable: %w", err)
	}

	f := os.NewFile(inheritedTaskConnFD, "task-conn")

	conn, err := net.FileConn(f)
	if err != nil {
		return fmt.Errorf("wrap inherited connection: %w", err)
	}
	f.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("inherited connection is not a unix socket")
	}

	// Each conversation gets a correlation id purely for log grepping;
	// sessions never use it to index state (spec §3's identity is
	// (caller_uid, caller_num) only).
	corrID := uuid.NewString()

	c := &task.Conversation{
		CallerUID: uid,
		CallerGID: gid,
		CallerNum: num,
		Login:     login,
		Home:      home,
		SelfExe:   selfExe,
		CallerCfg: config.DefaultCaller(),
		Conn:      unixConn,
		Log:       log.WithFields(logrus.Fields{"role": "conversation", "corr_id": corrID}),
	}

	return c.Run()
}
