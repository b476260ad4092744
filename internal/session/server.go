package session

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/privdrop"
	"github.com/altlinux/hasher-priv/internal/wire"
)

// socketDir is where per-caller session sockets are created, spec §4.3.
const socketDir = "/var/run/hasher-priv"

// Server is the per-caller session server: one spawned per (uid, num) pair,
// running as the caller after privilege drop, spec §4.3.
type Server struct {
	CallerUID uint32
	CallerGID uint32
	CallerNum uint32

	SelfExe        string
	SessionTimeout time.Duration
	CallerCfg      config.Caller

	MasterConn *os.File // the inherited OPEN_SESSION connection, fd 3

	Log *logrus.Entry

	listener *net.UnixListener
	data     *caller.Data
}

// Run derives the caller identity, drops privileges to it, binds the
// per-caller socket, replies DONE on MasterConn, and then serves
// TASK_BEGIN conversations until SessionTimeout idle or SIGTERM.
func (s *Server) Run() error {
	data, err := caller.Lookup(s.CallerUID, s.CallerGID)
	if err != nil {
		return s.deny(err)
	}

	s.data = data

	machine := &privdrop.Machine{}
	if err := machine.Drop(s.CallerUID, s.CallerGID); err != nil {
		return s.deny(err)
	}

	if err := privdrop.ApplyRlimits(s.CallerCfg.Rlimits); err != nil {
		return s.deny(err)
	}

	unix.Umask(int(s.CallerCfg.ChangeUmask))

	if s.CallerCfg.ChangeNice != 0 {
		_ = unix.Setpriority(unix.PRIO_PROCESS, 0, s.CallerCfg.ChangeNice)
	}

	key := Key{UID: s.CallerUID, Num: s.CallerNum}

	socketPath := filepath.Join(socketDir, key.SocketName())
	if err := s.bind(socketPath); err != nil {
		return s.deny(err)
	}
	defer os.Remove(socketPath)

	s.Log = s.Log.WithFields(logrus.Fields{"uid": s.CallerUID, "num": s.CallerNum, "login": data.Login})
	s.Log.Info("session server ready")

	if err := s.replyMasterDone(); err != nil {
		return err
	}

	return s.serve()
}

// replyMasterDone writes a DONE response on the inherited master
// connection, signaling the master's OPEN_SESSION caller may proceed.
func (s *Server) replyMasterDone() error {
	err := wire.WriteResponse(s.MasterConn, wire.Done, "")
	s.MasterConn.Close()

	return err
}

func (s *Server) deny(cause error) error {
	s.Log.WithError(cause).Warn("session server failed to initialize")
	s.MasterConn.Close()

	return cause
}

func (s *Server) bind(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return brokerr.New(brokerr.Resource, "create session socket dir", err)
	}

	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return brokerr.New(brokerr.Resource, "resolve session socket", err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return brokerr.New(brokerr.Resource, "listen session socket", err)
	}

	if err := os.Chmod(path, 0o700); err != nil {
		return brokerr.New(brokerr.Resource, "chmod session socket", err)
	}

	if err := os.Chown(path, int(s.CallerUID), int(s.CallerGID)); err != nil {
		return brokerr.New(brokerr.Resource, "chown session socket", err)
	}

	listener.SetUnlinkOnClose(true)
	s.listener = listener

	return nil
}

func (s *Server) serve() error {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	connCh := make(chan *net.UnixConn)
	errCh := make(chan error, 1)

	go func() {
		for {
			conn, err := s.listener.AcceptUnix()
			if err != nil {
				errCh <- err
				return
			}

			connCh <- conn
		}
	}()

	idle := time.NewTimer(s.SessionTimeout)
	defer idle.Stop()

	for {
		select {
		case conn := <-connCh:
			if !idle.Stop() {
				<-idle.C
			}

			idle.Reset(s.SessionTimeout)

			go s.handleConversation(conn)

		case <-idle.C:
			s.Log.Info("session idle timeout reached, exiting")
			return nil

		case <-sigCh:
			s.Log.Info("session server terminating")
			return nil

		case err := <-errCh:
			return brokerr.New(brokerr.Resource, "session accept loop", err)
		}
	}
}

// handleConversation forks a conversation process (re-exec'd __conversation)
// for one accepted connection, handing it the connection fd and the caller
// identity (uid, gid, num, login, home) without any shared memory. The
// caller configuration is not passed: the conversation process builds its
// own.
func (s *Server) handleConversation(conn *net.UnixConn) {
	defer conn.Close()

	f, err := conn.File()
	if err != nil {
		s.Log.WithError(err).Warn("failed to extract conversation fd")
		return
	}
	defer f.Close()

	cmd := exec.Command(s.SelfExe, "__conversation",
		"--uid", fmt.Sprint(s.CallerUID),
		"--gid", fmt.Sprint(s.CallerGID),
		"--num", fmt.Sprint(s.CallerNum),
		"--login", s.data.Login,
		"--home", s.data.HomeDir,
	)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		s.Log.WithError(err).Warn("failed to start conversation process")
		return
	}

	if err := cmd.Wait(); err != nil {
		s.Log.WithError(err).Debug("conversation process exited non-zero")
	}
}
