package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/pidfile"
	"github.com/altlinux/hasher-priv/internal/session"
)

// masterSocketPath is ${SOCKETDIR}/${PROJECT} (spec §3 "Paths").
const masterSocketPath = "/var/run/hasher-priv/hasher-priv"

func newDaemonCmd() *cobra.Command {
	var (
		pidfilePath string
		logLevel    string
		foreground  bool
		showVersion bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "run the broker master daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version)
				return nil
			}

			cfg := config.DefaultServer()
			cfg.Pidfile = pidfilePath

			if logLevel != "" {
				cfg.LogPriority = logLevel
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return runDaemon(cfg, foreground)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&pidfilePath, "pidfile", "p", "", "write the daemon's pid to FILE")
	flags.StringVarP(&logLevel, "loglevel", "l", "", "log priority: debug, info, warning, error")
	flags.BoolVarP(&foreground, "foreground", "f", false, "do not daemonize")
	flags.BoolVarP(&showVersion, "version", "V", false, "print version and exit")

	return cmd
}

func runDaemon(cfg config.Server, foreground bool) error {
	log := newLogger(cfg.LogPriority)

	if !foreground {
		log.Warn("daemonization is not implemented; running in foreground")
	}

	if err := pidfile.Write(cfg.Pidfile); err != nil {
		return err
	}
	defer pidfile.Remove(cfg.Pidfile)

	selfExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve self executable: %w", err)
	}

	m := &session.Master{
		SocketPath: masterSocketPath,
		ServerGID:  cfg.ServerGID,
		SelfExe:    selfExe,
		Table:      session.NewTable(),
		Log:        log.WithField("role", "master"),
	}

	return m.Run()
}
