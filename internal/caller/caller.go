// Package caller derives and validates the per-session caller identity from
// kernel-supplied credentials, the Go equivalent of hasher-priv's caller.c.
package caller

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/altlinux/hasher-priv/internal/brokerr"
)

// Minimum uid/gid a caller may run as; below this are system accounts
// (spec §3).
const (
	MinChangeUID = 34
	MinChangeGID = 34
)

// Data is the derived, immutable caller identity for one session.
type Data struct {
	UID     uint32
	GID     uint32
	Login   string
	HomeDir string
}

// Lookup resolves and validates caller identity from the peer-supplied
// (uid, gid), per spec §3 "Caller data" invariants.
func Lookup(uid, gid uint32) (*Data, error) {
	if uid < MinChangeUID {
		return nil, brokerr.New(brokerr.Validation, "caller uid", fmt.Errorf("uid %d below minimum %d", uid, MinChangeUID))
	}

	if gid < MinChangeGID {
		return nil, brokerr.New(brokerr.Validation, "caller gid", fmt.Errorf("gid %d below minimum %d", gid, MinChangeGID))
	}

	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return nil, brokerr.New(brokerr.Validation, "lookup caller", err)
	}

	recordUID, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil || uint32(recordUID) != uid {
		return nil, brokerr.New(brokerr.Validation, "lookup caller", fmt.Errorf("passwd uid %s does not match supplied uid %d", u.Uid, uid))
	}

	recordGID, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil || uint32(recordGID) != gid {
		return nil, brokerr.New(brokerr.Validation, "lookup caller", fmt.Errorf("passwd gid %s does not match supplied gid %d", u.Gid, gid))
	}

	home, err := filepath.Abs(u.HomeDir)
	if err != nil || home == "" || home == "." {
		return nil, brokerr.New(brokerr.Validation, "lookup caller", fmt.Errorf("home directory %q does not canonicalize", u.HomeDir))
	}

	if _, err := os.Stat(home); err != nil {
		return nil, brokerr.New(brokerr.Validation, "lookup caller", fmt.Errorf("home directory %q does not exist: %w", home, err))
	}

	return &Data{
		UID:     uid,
		GID:     gid,
		Login:   u.Username,
		HomeDir: home,
	}, nil
}
