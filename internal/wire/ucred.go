package wire

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// PeerCred extracts the kernel-supplied credentials of the peer of a
// Unix-domain connection via SO_PEERCRED, the same technique
// lxd/api_devlxd.go's ConnPidMapper uses on its devlxd listener.
func PeerCred(conn *net.UnixConn) (*unix.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, brokerr.New(brokerr.Resource, "peer cred", err)
	}

	var (
		cred    *unix.Ucred
		credErr error
	)

	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, brokerr.New(brokerr.Resource, "peer cred", err)
	}

	if credErr != nil {
		return nil, brokerr.New(brokerr.Auth, "peer cred", credErr)
	}

	return cred, nil
}

// CheckPeer verifies that the peer's uid/gid match the session's caller
// identity, per spec §4.1: "A session server additionally verifies
// peer.uid == caller_uid && peer.gid == caller_gid".
func CheckPeer(conn *net.UnixConn, callerUID, callerGID uint32) error {
	cred, err := PeerCred(conn)
	if err != nil {
		return err
	}

	if cred.Uid != callerUID || cred.Gid != callerGID {
		return brokerr.New(brokerr.Auth, "check peer",
			fmt.Errorf("peer %d:%d does not match caller %d:%d", cred.Uid, cred.Gid, callerUID, callerGID))
	}

	return nil
}
