package main

import (
	"fmt"
	"net"
	"os"

	"github.com/altlinux/hasher-priv/internal/session"
	"github.com/altlinux/hasher-priv/internal/wire"
)

// openSession performs the OPEN_SESSION handshake on the master socket,
// then dials the resulting per-caller session socket, spec §4.1.
func openSession(callerNum uint32) (*net.UnixConn, error) {
	masterConn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: masterSocketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("dial master socket: %w", err)
	}
	defer masterConn.Close()

	payload := wire.EncodeSessionPayload(wire.SessionPayload{CallerNum: callerNum})

	if err := wire.WriteCommandHeader(masterConn, wire.CommandHeader{
		Type:    wire.OpenSession,
		DataLen: uint64(len(payload)),
	}); err != nil {
		return nil, fmt.Errorf("write OPEN_SESSION header: %w", err)
	}

	if _, err := masterConn.Write(payload); err != nil {
		return nil, fmt.Errorf("write OPEN_SESSION payload: %w", err)
	}

	resp, msg, err := wire.ReadResponseHeader(masterConn)
	if err != nil {
		return nil, fmt.Errorf("read OPEN_SESSION response: %w", err)
	}

	if resp.Status != wire.Done {
		return nil, fmt.Errorf("OPEN_SESSION failed: %s", msg)
	}

	uid := uint32(os.Getuid())
	key := session.Key{UID: uid, Num: callerNum}

	sessionSocketPath := "/var/run/hasher-priv/" + key.SocketName()

	sessionConn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: sessionSocketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("dial session socket: %w", err)
	}

	return sessionConn, nil
}
