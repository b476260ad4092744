package main

import (
	"fmt"
	"net"
	"os"

	"github.com/altlinux/hasher-priv/internal/task"
	"github.com/altlinux/hasher-priv/internal/wire"
)

// runConversation drives the full TASK_BEGIN/TASK_FDS/TASK_ARGUMENTS/
// TASK_ENVIRON/TASK_RUN sequence on an already-connected session socket,
// spec §4.4, passing the client's own stdio descriptors to the broker.
func runConversation(conn *net.UnixConn, callerNum uint32, kind task.Kind, taskArgs []string) (int, error) {
	if err := sendTaskBegin(conn, kind, callerNum); err != nil {
		return 0, err
	}

	if err := sendTaskFDs(conn); err != nil {
		return 0, err
	}

	if err := sendVector(conn, wire.TaskArguments, taskArgs); err != nil {
		return 0, err
	}

	if err := sendVector(conn, wire.TaskEnviron, os.Environ()); err != nil {
		return 0, err
	}

	if err := wire.WriteCommandHeader(conn, wire.CommandHeader{Type: wire.TaskRun, DataLen: 0}); err != nil {
		return 0, fmt.Errorf("write TASK_RUN header: %w", err)
	}

	resp, msg, err := wire.ReadResponseHeader(conn)
	if err != nil {
		return 0, fmt.Errorf("read TASK_RUN response: %w", err)
	}

	if resp.Status != wire.Done {
		return 0, fmt.Errorf("task failed: %s", msg)
	}

	status, err := wire.DecodeTaskRunResponse(msg)
	if err != nil {
		return 0, fmt.Errorf("decode task exit status: %w", err)
	}

	return status, nil
}

func sendTaskBegin(conn *net.UnixConn, kind task.Kind, callerNum uint32) error {
	payload := wire.EncodeTaskBegin(wire.TaskBeginPayload{Kind: uint32(kind), CallerNum: callerNum})

	if err := wire.WriteCommandHeader(conn, wire.CommandHeader{Type: wire.TaskBegin, DataLen: uint64(len(payload))}); err != nil {
		return fmt.Errorf("write TASK_BEGIN header: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write TASK_BEGIN payload: %w", err)
	}

	return readDoneResponse(conn, "TASK_BEGIN")
}

func sendTaskFDs(conn *net.UnixConn) error {
	if err := wire.WriteCommandHeader(conn, wire.CommandHeader{Type: wire.TaskFDs, DataLen: 1}); err != nil {
		return fmt.Errorf("write TASK_FDS header: %w", err)
	}

	if err := wire.SendFds(conn, int(os.Stdin.Fd()), int(os.Stdout.Fd()), int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("send fds: %w", err)
	}

	return readDoneResponse(conn, "TASK_FDS")
}

func sendVector(conn *net.UnixConn, cmdType wire.CmdType, vec []string) error {
	payload, err := wire.EncodeVector(vec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmdType, err)
	}

	if err := wire.WriteCommandHeader(conn, wire.CommandHeader{Type: cmdType, DataLen: uint64(len(payload))}); err != nil {
		return fmt.Errorf("write %s header: %w", cmdType, err)
	}

	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return fmt.Errorf("write %s payload: %w", cmdType, err)
		}
	}

	return readDoneResponse(conn, cmdType.String())
}

func readDoneResponse(conn *net.UnixConn, op string) error {
	resp, msg, err := wire.ReadResponseHeader(conn)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}

	if resp.Status != wire.Done {
		return fmt.Errorf("%s failed: %s", op, msg)
	}

	return nil
}
