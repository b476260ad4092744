package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// ReadCommandHeader reads and validates a CommandHeader from r.
func ReadCommandHeader(r io.Reader) (CommandHeader, error) {
	var buf [commandHeaderWire]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return CommandHeader{}, brokerr.New(brokerr.Protocol, "read command header", err)
	}

	typ := binary.LittleEndian.Uint32(buf[0:4])
	dataLen := binary.LittleEndian.Uint64(buf[4:12])

	return CommandHeader{Type: CmdType(typ), DataLen: dataLen}, nil
}

// WriteCommandHeader writes h to w.
func WriteCommandHeader(w io.Writer, h CommandHeader) error {
	var buf [commandHeaderWire]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Type))
	binary.LittleEndian.PutUint64(buf[4:12], h.DataLen)

	_, err := w.Write(buf[:])
	return err
}

// ReadResponseHeader reads a ResponseHeader and, if MsgLen > 0, the message
// that follows it.
func ReadResponseHeader(r io.Reader) (ResponseHeader, string, error) {
	var buf [responseHeaderWire]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ResponseHeader{}, "", brokerr.New(brokerr.Protocol, "read response header", err)
	}

	status := Status(int32(binary.LittleEndian.Uint32(buf[0:4])))
	msgLen := int64(binary.LittleEndian.Uint64(buf[4:12]))

	if msgLen < 0 {
		return ResponseHeader{}, "", brokerr.New(brokerr.Protocol, "read response header", fmt.Errorf("negative msglen %d", msgLen))
	}

	var msg string
	if msgLen > 0 {
		msgBuf := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msgBuf); err != nil {
			return ResponseHeader{}, "", brokerr.New(brokerr.Protocol, "read response message", err)
		}

		msg = string(msgBuf)
	}

	return ResponseHeader{Status: status, MsgLen: msgLen}, msg, nil
}

// WriteResponse writes a ResponseHeader followed by msg (UTF-8, no NUL) when
// status is Failed and msg is non-empty.
func WriteResponse(w io.Writer, status Status, msg string) error {
	if status != Failed {
		msg = ""
	}

	return writeResponseWithMsg(w, status, msg)
}

func writeResponseWithMsg(w io.Writer, status Status, msg string) error {
	var buf [responseHeaderWire]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(status)))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(msg)))

	if _, err := w.Write(buf[:]); err != nil {
		return err
	}

	if len(msg) > 0 {
		if _, err := w.Write([]byte(msg)); err != nil {
			return err
		}
	}

	return nil
}

// WriteTaskRunResponse reports a completed task's exit status on a
// DONE response: the message carries the decimal exit status so the client
// can propagate it, distinct from the empty-message DONE other commands
// use. A FAILED response is still reserved for broker-level failures that
// prevented the task from running at all.
func WriteTaskRunResponse(w io.Writer, exitStatus int) error {
	return writeResponseWithMsg(w, Done, fmt.Sprintf("%d", exitStatus))
}

// DecodeTaskRunResponse parses the message WriteTaskRunResponse wrote.
func DecodeTaskRunResponse(msg string) (int, error) {
	var status int
	if _, err := fmt.Sscanf(msg, "%d", &status); err != nil {
		return 0, brokerr.New(brokerr.Protocol, "decode task run response", err)
	}

	return status, nil
}

// DecodeTaskBegin parses the fixed-size TASK_BEGIN payload.
func DecodeTaskBegin(payload []byte) (TaskBeginPayload, error) {
	if len(payload) != taskBeginWire {
		return TaskBeginPayload{}, brokerr.New(brokerr.Protocol, "decode task begin",
			fmt.Errorf("expected %d bytes, got %d", taskBeginWire, len(payload)))
	}

	return TaskBeginPayload{
		Kind:      binary.LittleEndian.Uint32(payload[0:4]),
		CallerNum: binary.LittleEndian.Uint32(payload[4:8]),
	}, nil
}

// EncodeTaskBegin serializes a TASK_BEGIN payload.
func EncodeTaskBegin(p TaskBeginPayload) []byte {
	buf := make([]byte, taskBeginWire)
	binary.LittleEndian.PutUint32(buf[0:4], p.Kind)
	binary.LittleEndian.PutUint32(buf[4:8], p.CallerNum)
	return buf
}

// DecodeSessionPayload parses an OPEN_SESSION/CLOSE_SESSION payload.
func DecodeSessionPayload(payload []byte) (SessionPayload, error) {
	if len(payload) != sessionPayloadWire {
		return SessionPayload{}, brokerr.New(brokerr.Protocol, "decode session payload",
			fmt.Errorf("expected %d bytes, got %d", sessionPayloadWire, len(payload)))
	}

	return SessionPayload{CallerNum: binary.LittleEndian.Uint32(payload)}, nil
}

// EncodeSessionPayload serializes an OPEN_SESSION/CLOSE_SESSION payload.
func EncodeSessionPayload(p SessionPayload) []byte {
	buf := make([]byte, sessionPayloadWire)
	binary.LittleEndian.PutUint32(buf, p.CallerNum)
	return buf
}

// EncodeVector concatenates strs as NUL-terminated strings, in order. No
// element may itself contain a NUL byte.
func EncodeVector(strs []string) ([]byte, error) {
	var buf bytes.Buffer

	for _, s := range strs {
		if bytes.IndexByte([]byte(s), 0) >= 0 {
			return nil, fmt.Errorf("vector element contains NUL byte")
		}

		buf.WriteString(s)
		buf.WriteByte(0)
	}

	return buf.Bytes(), nil
}

// DecodeVector reconstructs a string vector from a NUL-terminated
// concatenation of exactly len(data) bytes. The final byte of data must be a
// NUL, or data must be empty.
func DecodeVector(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if data[len(data)-1] != 0 {
		return nil, brokerr.New(brokerr.Protocol, "decode vector", fmt.Errorf("data not NUL-terminated"))
	}

	var out []string

	start := 0
	for i, b := range data {
		if b == 0 {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}

	return out, nil
}
