// Package wire implements the length-prefixed command/response protocol
// used on both the master socket and every per-caller session socket.
package wire

import "fmt"

// CmdType is the closed set of command types carried in a CommandHeader.
type CmdType uint32

const (
	OpenSession CmdType = iota
	CloseSession
	TaskBegin
	TaskFDs
	TaskArguments
	TaskEnviron
	TaskRun
)

func (t CmdType) String() string {
	switch t {
	case OpenSession:
		return "OPEN_SESSION"
	case CloseSession:
		return "CLOSE_SESSION"
	case TaskBegin:
		return "TASK_BEGIN"
	case TaskFDs:
		return "TASK_FDS"
	case TaskArguments:
		return "TASK_ARGUMENTS"
	case TaskEnviron:
		return "TASK_ENVIRON"
	case TaskRun:
		return "TASK_RUN"
	default:
		return fmt.Sprintf("CmdType(%d)", uint32(t))
	}
}

// Status is the closed set of outcomes carried in a ResponseHeader.
type Status int32

const (
	Done Status = iota
	Failed
)

func (s Status) String() string {
	if s == Done {
		return "DONE"
	}

	return "FAILED"
}

// CommandHeader is the fixed-size header preceding every request payload.
type CommandHeader struct {
	Type    CmdType
	DataLen uint64
}

// ResponseHeader is the fixed-size header preceding every response.
// The message that follows it is only sent when MsgLen > 0.
type ResponseHeader struct {
	Status Status
	MsgLen int64
}

// TaskBeginPayload is the struct carried by a TASK_BEGIN command.
type TaskBeginPayload struct {
	Kind      uint32
	CallerNum uint32
}

// SessionPayload is the struct carried by OPEN_SESSION and CLOSE_SESSION
// commands on the master socket; the caller's uid comes from SO_PEERCRED,
// not from this payload.
type SessionPayload struct {
	CallerNum uint32
}

const (
	commandHeaderWire  = 4 + 8 // type u32, datalen u64
	responseHeaderWire = 4 + 8 // status i32, msglen i64
	taskBeginWire      = 4 + 4 // kind u32, caller_num u32
	sessionPayloadWire = 4     // caller_num u32
)
