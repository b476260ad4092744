package session

import (
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
	"github.com/altlinux/hasher-priv/internal/wire"
)

// recvTimeout is the "3-second receive timeout" spec §4.2/§5 sets on every
// accepted control connection before its first read.
const recvTimeout = 3 * time.Second

// drainPollInterval is the poll timeout the master switches to while
// draining sessions on shutdown (spec §4.2).
const drainPollInterval = 3 * time.Second

// Master is the single long-lived root process: it owns the well-known
// socket, authenticates peers, and maintains the session table.
type Master struct {
	SocketPath string
	ServerGID  uint32
	SelfExe    string
	Table      *Table
	Log        *logrus.Entry

	listener *net.UnixListener

	// openMu serializes OPEN_SESSION's lookup+fork+insert sequence across
	// the concurrently-handled connections handleConnection is dispatched
	// on (master.go's accept loop hands each connection its own
	// goroutine). Without this, two simultaneous OPEN_SESSIONs for the
	// same brand-new key can both observe a table miss before either
	// inserts, forking two session servers for one key and violating
	// spec §3/§8's "at most one entry per (caller_uid, caller_num)".
	openMu sync.Mutex
}

// Run binds the master socket and serves OPEN_SESSION/CLOSE_SESSION until a
// shutdown signal is received, then drains every live session before
// returning.
func (m *Master) Run() error {
	if err := os.MkdirAll(filepath.Dir(m.SocketPath), 0o700); err != nil {
		return brokerr.New(brokerr.Resource, "create socket dir", err)
	}

	_ = os.Remove(m.SocketPath)

	addr, err := net.ResolveUnixAddr("unix", m.SocketPath)
	if err != nil {
		return brokerr.New(brokerr.Resource, "resolve master socket", err)
	}

	oldMask := unix.Umask(0o117) // leaves mode 0660 after listen's default 0777
	listener, err := net.ListenUnix("unix", addr)
	unix.Umask(oldMask)

	if err != nil {
		return brokerr.New(brokerr.Resource, "listen master socket", err)
	}

	listener.SetUnlinkOnClose(true)
	m.listener = listener

	if err := os.Chmod(m.SocketPath, 0o660); err != nil {
		m.Log.WithError(err).Warn("failed to chmod master socket")
	}

	if err := os.Chown(m.SocketPath, -1, int(m.ServerGID)); err != nil {
		m.Log.WithError(err).Warn("failed to chown master socket to server gid")
	}

	m.Log.WithField("socket", m.SocketPath).Info("master daemon listening")

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	connCh := make(chan *net.UnixConn)
	acceptErrCh := make(chan error, 1)

	go m.acceptLoop(connCh, acceptErrCh)

	for {
		select {
		case conn := <-connCh:
			go m.handleConnection(conn)

		case err := <-acceptErrCh:
			m.Log.WithError(err).Warn("accept loop ended")
			return m.drain(sigCh)

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				m.Log.Info("SIGHUP received, no-op")
			default:
				m.Log.WithField("signal", sig).Info("shutting down")
				_ = m.listener.Close()
				return m.drain(sigCh)
			}
		}
	}
}

func (m *Master) acceptLoop(connCh chan<- *net.UnixConn, errCh chan<- error) {
	for {
		conn, err := m.listener.AcceptUnix()
		if err != nil {
			errCh <- err
			return
		}

		connCh <- conn
	}
}

// drain implements spec §4.2's termination semantics: stop accepting,
// SIGTERM every live session, poll at drainPollInterval until the table is
// empty.
func (m *Master) drain(sigCh <-chan os.Signal) error {
	for _, e := range m.Table.All() {
		_ = unix.Kill(e.ServerPID, unix.SIGTERM)
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for m.Table.Len() > 0 {
		<-ticker.C

		for _, e := range m.Table.All() {
			var ws unix.WaitStatus

			pid, err := unix.Wait4(e.ServerPID, &ws, unix.WNOHANG, nil)
			if err == nil && pid == e.ServerPID {
				m.Table.RemoveByPID(e.ServerPID)
			}
		}
	}

	return nil
}

func (m *Master) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(recvTimeout))

	cred, err := wire.PeerCred(conn)
	if err != nil {
		m.fail(conn, brokerr.Auth, err)
		return
	}

	hdr, err := wire.ReadCommandHeader(conn)
	if err != nil {
		m.fail(conn, brokerr.Protocol, err)
		return
	}

	payload := make([]byte, hdr.DataLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		m.fail(conn, brokerr.Protocol, err)
		return
	}

	session, err := wire.DecodeSessionPayload(payload)
	if err != nil {
		m.fail(conn, brokerr.Protocol, err)
		return
	}

	key := Key{UID: cred.Uid, Num: session.CallerNum}

	switch hdr.Type {
	case wire.OpenSession:
		m.handleOpenSession(conn, key, cred.Gid)
	case wire.CloseSession:
		m.handleCloseSession(conn, key)
	default:
		m.fail(conn, brokerr.Protocol, brokerr.New(brokerr.Protocol, "dispatch", errUnexpectedCommand(hdr.Type)))
	}
}

func (m *Master) handleOpenSession(conn *net.UnixConn, key Key, gid uint32) {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	if _, ok := m.Table.Lookup(key); ok {
		_ = wire.WriteResponse(conn, wire.Done, "")
		return
	}

	cmd := exec.Command(m.SelfExe, "__session-server",
		"--uid", strconv.FormatUint(uint64(key.UID), 10),
		"--gid", strconv.FormatUint(uint64(gid), 10),
		"--num", strconv.FormatUint(uint64(key.Num), 10))

	f, err := conn.File()
	if err != nil {
		m.fail(conn, brokerr.Resource, err)
		return
	}

	cmd.ExtraFiles = []*os.File{f}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		f.Close()
		m.fail(conn, brokerr.Resource, err)
		return
	}

	f.Close()

	m.Table.Insert(Entry{Key: key, CallerGID: gid, ServerPID: cmd.Process.Pid})

	go m.reap(key, cmd)

	// The forked session server replies DONE on the same connection
	// once it has finished initializing; the master's own copy of the
	// fd is closed above and it does not wait for that reply itself.
}

func (m *Master) reap(key Key, cmd *exec.Cmd) {
	_ = cmd.Wait()
	m.Table.Remove(key)
	m.Log.WithField("session", key).Info("session server exited")
}

func (m *Master) handleCloseSession(conn *net.UnixConn, key Key) {
	if e, ok := m.Table.Lookup(key); ok {
		_ = unix.Kill(e.ServerPID, unix.SIGTERM)
	}

	// Idempotent per spec §9's resolution of the inconsistent C behavior.
	_ = wire.WriteResponse(conn, wire.Done, "")
}

func (m *Master) fail(conn *net.UnixConn, kind brokerr.Kind, err error) {
	m.Log.WithError(err).WithField("kind", kind).Warn("request failed")
	_ = wire.WriteResponse(conn, wire.Failed, err.Error())
}

type errUnexpectedCommand wire.CmdType

func (e errUnexpectedCommand) Error() string {
	return "unexpected command on master socket: " + wire.CmdType(e).String()
}
