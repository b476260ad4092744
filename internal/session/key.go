// Package session implements the master daemon's session table and the
// per-caller session server, spec §4.2-§4.3.
package session

import "fmt"

// Key identifies a session by (caller_uid, caller_num), the only identity a
// session has — spec §3: "sessions are identified only by that key, never
// by the connection that created them".
type Key struct {
	UID uint32
	Num uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d", k.UID, k.Num)
}

// SocketName returns the per-caller socket's basename,
// hasher-priv-${uid}-${num}.
func (k Key) SocketName() string {
	return fmt.Sprintf("hasher-priv-%d-%d", k.UID, k.Num)
}
