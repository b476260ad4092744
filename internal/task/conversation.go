package task

import (
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/altlinux/hasher-priv/internal/brokerr"
	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/wire"
)

var (
	errUnexpectedCommand = errors.New("unexpected command in conversation")
	errNonZeroDataLen    = errors.New("task run command must carry no payload")
	errCallerNumMismatch = errors.New("task begin caller_num does not match session")
)

// recvTimeout is the "3-second receive timeout" spec §4.3/§5 sets on every
// accepted task connection, mirrored here from session.recvTimeout since a
// conversation runs in its own re-exec'd process and can't share that
// constant directly. Re-armed before every command read so a client that
// drip-feeds one byte every couple of seconds doesn't wedge the server, but
// one that goes silent mid-conversation is dropped within the window.
const recvTimeout = 3 * time.Second

// Conversation drives one accepted session-socket connection through the
// TASK_BEGIN/TASK_FDS/TASK_ARGUMENTS/TASK_ENVIRON/TASK_RUN sequence spec
// §4.4 defines, then runs the task through a Worker inside this same
// conversation process. No separate worker process is forked.
type Conversation struct {
	CallerUID, CallerGID uint32
	CallerNum            uint32
	Login, Home          string

	SelfExe   string
	CallerCfg config.Caller

	Conn *net.UnixConn
	Log  *logrus.Entry
}

// Run services exactly one conversation to completion.
func (c *Conversation) Run() error {
	if err := wire.CheckPeer(c.Conn, c.CallerUID, c.CallerGID); err != nil {
		return c.fail(err)
	}

	rec := &Record{}
	defer rec.Close()

	for {
		if err := c.Conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			return c.fail(brokerr.New(brokerr.Resource, "set conversation deadline", err))
		}

		hdr, err := wire.ReadCommandHeader(c.Conn)
		if err != nil {
			return c.fail(brokerr.New(brokerr.Protocol, "read command", err))
		}

		switch hdr.Type {
		case wire.TaskBegin:
			if err := c.handleTaskBegin(rec, hdr); err != nil {
				return c.fail(err)
			}

		case wire.TaskFDs:
			if err := c.handleTaskFDs(rec, hdr); err != nil {
				return c.fail(err)
			}

		case wire.TaskArguments:
			if err := c.handleVector(hdr, rec.SetArgv); err != nil {
				return c.fail(err)
			}

		case wire.TaskEnviron:
			if err := c.handleVector(hdr, func(v []string) error { rec.SetEnvp(v); return nil }); err != nil {
				return c.fail(err)
			}

		case wire.TaskRun:
			if hdr.DataLen != 0 {
				return c.fail(brokerr.New(brokerr.Protocol, "task run", errNonZeroDataLen))
			}

			return c.handleTaskRun(rec)

		default:
			return c.fail(brokerr.New(brokerr.Protocol, "conversation dispatch", errUnexpectedCommand))
		}
	}
}

func (c *Conversation) handleTaskBegin(rec *Record, hdr wire.CommandHeader) error {
	payload, err := c.readPayload(hdr)
	if err != nil {
		return err
	}

	begin, err := wire.DecodeTaskBegin(payload)
	if err != nil {
		return err
	}

	if begin.CallerNum != c.CallerNum {
		return brokerr.New(brokerr.Protocol, "task begin", errCallerNumMismatch)
	}

	rec.Kind = Kind(begin.Kind)

	return wire.WriteResponse(c.Conn, wire.Done, "")
}

func (c *Conversation) handleTaskFDs(rec *Record, hdr wire.CommandHeader) error {
	stdin, stdout, stderr, err := wire.RecvFds(c.Conn, int(hdr.DataLen))
	if err != nil {
		return err
	}

	rec.SetFds(stdin, stdout, stderr)

	return wire.WriteResponse(c.Conn, wire.Done, "")
}

func (c *Conversation) handleVector(hdr wire.CommandHeader, set func([]string) error) error {
	payload, err := c.readPayload(hdr)
	if err != nil {
		return err
	}

	vec, err := wire.DecodeVector(payload)
	if err != nil {
		return err
	}

	if err := set(vec); err != nil {
		return err
	}

	return wire.WriteResponse(c.Conn, wire.Done, "")
}

func (c *Conversation) handleTaskRun(rec *Record) error {
	if err := rec.CheckChrootPath(); err != nil {
		return c.fail(err)
	}

	w := &Worker{
		CallerUID: c.CallerUID,
		CallerGID: c.CallerGID,
		Login:     c.Login,
		Home:      c.Home,
		SelfExe:   c.SelfExe,
		Record:    rec,
		CallerCfg: c.CallerCfg,
	}

	status, err := w.Run()
	if err != nil {
		return c.fail(err)
	}

	return wire.WriteTaskRunResponse(c.Conn, status)
}

func (c *Conversation) readPayload(hdr wire.CommandHeader) ([]byte, error) {
	buf := make([]byte, hdr.DataLen)
	if _, err := readFull(c.Conn, buf); err != nil {
		return nil, brokerr.New(brokerr.Protocol, "read payload", err)
	}

	return buf, nil
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}

func (c *Conversation) fail(err error) error {
	c.Log.WithError(err).Warn("conversation failed")
	_ = wire.WriteResponse(c.Conn, wire.Failed, err.Error())

	return err
}
