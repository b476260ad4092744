// Package container assembles the chrootuid{1,2} task's namespaced,
// chrooted, pty-backed child process, per spec §4.5.
//
// A literal fork(2) of a live multi-threaded Go process is unsafe (the Go
// runtime may hold locks in other OS threads at the instant of the fork);
// the idiomatic Go replacement container tooling uses — see
// other_examples/16844619_..._process_linux.go.go's initProcess/setnsProcess
// split in runc's libcontainer — is to let exec.Cmd's SysProcAttr.Cloneflags
// perform the namespace-creating clone(2) atomically as part of starting a
// fresh, single-threaded child process. This package re-execs the current
// binary into the "__container-slave" hidden subcommand for that purpose;
// see DESIGN.md for why this reorders spec §4.5 step 11 relative to the
// original C sources.
package container

import (
	"encoding/json"
)

// Bootstrap is handed to the container-slave child over an inherited pipe,
// carrying everything it needs to finish the chroot/setuid sequence and
// exec the caller's command.
type Bootstrap struct {
	ChrootPath string   `json:"chroot_path"`
	CallerUID  uint32   `json:"caller_uid"`
	TargetUID  uint32   `json:"target_uid"`
	TargetGID  uint32   `json:"target_gid"`
	Argv       []string `json:"argv"`
	Home       string   `json:"home"`
	User       string   `json:"user"`
	Path       string   `json:"path"`
	Term       string   `json:"term"`

	ShareCallerNetwork bool    `json:"share_caller_network"`
	UsePty             bool    `json:"use_pty"`
	Mountpoints        []Mount `json:"mountpoints"`
	X11Display         int     `json:"x11_display"`
	HasX11             bool    `json:"has_x11"`
}

// Mount is one bind-mount to perform inside the new mount namespace before
// chrooting, resolved from the caller's allowed_mountpoints table.
type Mount struct {
	HostPath string `json:"host_path"`
	Name     string `json:"name"`
}

// EncodeBootstrap serializes b for transmission over the bootstrap pipe.
func EncodeBootstrap(b Bootstrap) ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBootstrap parses a Bootstrap from bytes read off the bootstrap
// pipe.
func DecodeBootstrap(data []byte) (Bootstrap, error) {
	var b Bootstrap
	err := json.Unmarshal(data, &b)
	return b, err
}
