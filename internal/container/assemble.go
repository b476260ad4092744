package container

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/brokerr"
	"github.com/altlinux/hasher-priv/internal/caller"
	"github.com/altlinux/hasher-priv/internal/config"
	"github.com/altlinux/hasher-priv/internal/task"
)

// ExtraFiles slot indices handed to the __container-slave child (fds 3+).
const (
	slotSlave = iota
	slotPipeOutWrite
	slotPipeErrWrite
	slotX11Child
	slotBootstrap
	slotCount
)

// Params bundles what Assemble needs beyond the task record.
type Params struct {
	Caller     *caller.Data
	Config     config.Caller
	Kind       task.Kind // KindChrootUID1 or KindChrootUID2
	SelfExe    string    // path to the running binary, for re-exec
	TargetUID  uint32
	TargetGID  uint32
	Home, User string
}

// Assemble performs spec §4.5's chroot container construction sequence and
// returns the exit status of the caller's command once it has run to
// completion.
func Assemble(rec *task.Record, p Params) (int, error) {
	if p.TargetUID < caller.MinChangeUID || p.TargetUID == uint32(os.Getuid()) {
		return 0, brokerr.New(brokerr.Validation, "chrootuid target", fmt.Errorf("invalid target uid %d", p.TargetUID))
	}

	if err := validateAbsoluteCommand(rec.CommandArgv()); err != nil {
		return 0, err
	}

	ptyMaster, ptySlave, err := openPTY()
	if err != nil {
		return 0, brokerr.New(brokerr.Resource, "open pty", err)
	}
	defer ptyMaster.Close()

	var pipeOutR, pipeOutW, pipeErrR, pipeErrW *os.File

	if !p.Config.UsePty {
		if pipeOutR, pipeOutW, err = os.Pipe(); err != nil {
			return 0, brokerr.New(brokerr.Resource, "pipe stdout", err)
		}

		if pipeErrR, pipeErrW, err = os.Pipe(); err != nil {
			return 0, brokerr.New(brokerr.Resource, "pipe stderr", err)
		}
	}

	var x11Parent, x11Child *os.File

	if p.Config.X11Forwarding {
		x11Parent, x11Child, err = newX11ControlPair()
		if err != nil {
			return 0, brokerr.New(brokerr.Resource, "x11 socketpair", err)
		}
	}

	bootstrapR, bootstrapW, err := os.Pipe()
	if err != nil {
		return 0, brokerr.New(brokerr.Resource, "bootstrap pipe", err)
	}

	extra := make([]*os.File, slotCount)
	extra[slotSlave] = ptySlave
	extra[slotBootstrap] = bootstrapR

	if pipeOutW != nil {
		extra[slotPipeOutWrite] = pipeOutW
		extra[slotPipeErrWrite] = pipeErrW
	}

	if x11Child != nil {
		extra[slotX11Child] = x11Child
	}

	cmd := exec.Command(p.SelfExe, "__container-slave")
	cmd.ExtraFiles = fillExtraFiles(extra)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS | maybeNewNet(p.Config.ShareCallerNetwork),
	}

	bootstrap := buildBootstrap(rec, p)

	if err := cmd.Start(); err != nil {
		return 0, brokerr.New(brokerr.Resource, "start container-slave", err)
	}

	// The parent never touches the new mount/root namespace: everything
	// from here on is I/O relaying and waiting.
	ptySlave.Close()
	bootstrapR.Close()

	if pipeOutW != nil {
		pipeOutW.Close()
		pipeErrW.Close()
	}

	if x11Child != nil {
		x11Child.Close()
	}

	data, err := EncodeBootstrap(bootstrap)
	if err != nil {
		return 0, brokerr.New(brokerr.Resource, "encode bootstrap", err)
	}

	if _, err := bootstrapW.Write(data); err != nil {
		return 0, brokerr.New(brokerr.Resource, "write bootstrap", err)
	}

	bootstrapW.Close()

	if err := pumpIO(ptyMaster, pipeOutR, pipeErrR, x11Parent, rec); err != nil {
		// Best-effort: the caller's command may already have exited,
		// closing its end of these pipes.
		_ = err
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}

		return 0, brokerr.New(brokerr.Task, "container-slave wait", err)
	}

	return 0, nil
}

func maybeNewNet(shareCallerNetwork bool) uintptr {
	if shareCallerNetwork {
		return 0
	}

	return unix.CLONE_NEWNET
}

func fillExtraFiles(slots []*os.File) []*os.File {
	out := make([]*os.File, len(slots))

	for i, f := range slots {
		if f == nil {
			devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
			if err == nil {
				f = devnull
			}
		}

		out[i] = f
	}

	return out
}

func buildBootstrap(rec *task.Record, p Params) Bootstrap {
	mounts := make([]Mount, 0, len(p.Config.AllowedMountpoints))
	for name, host := range p.Config.AllowedMountpoints {
		mounts = append(mounts, Mount{Name: name, HostPath: host})
	}

	term := os.Getenv("TERM")
	if term == "" {
		term = "dumb"
	}

	return Bootstrap{
		ChrootPath:         rec.ChrootPath,
		CallerUID:          p.Caller.UID,
		TargetUID:          p.TargetUID,
		TargetGID:          p.TargetGID,
		Argv:               rec.CommandArgv(),
		Home:               p.Home,
		User:               p.User,
		Path:               defaultPath(p.Kind),
		Term:               term,
		ShareCallerNetwork: p.Config.ShareCallerNetwork,
		UsePty:             p.Config.UsePty,
		Mountpoints:        mounts,
		X11Display:         p.Config.X11Display,
		HasX11:             p.Config.X11Forwarding,
	}
}

func defaultPath(k task.Kind) string {
	if k == task.KindChrootUID2 {
		return "/bin:/usr/bin:/usr/X11R6/bin"
	}

	return "/sbin:/usr/sbin:/bin:/usr/bin"
}

// validateAbsoluteCommand enforces task invariant (b): argv[0] of a chroot
// task's command must be absolute.
func validateAbsoluteCommand(argv []string) error {
	if len(argv) == 0 || filepath.IsAbs(argv[0]) {
		return nil
	}

	return brokerr.New(brokerr.Validation, "chroot command", fmt.Errorf("%q is not an absolute path", argv[0]))
}
