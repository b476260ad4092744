package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/altlinux/hasher-priv/internal/netutils"
)

// x11ChildExecFD is the "known slot" spec §4.5 step 11 promises the X11
// control fd will be handed to the caller-supplied command on.
const x11ChildExecFD = 4

func fdForSlot(slot int) uintptr { return uintptr(3 + slot) }

// RunContainerSlave is the __container-slave hidden subcommand's entry
// point. It never returns on success: it ends by replacing its own image
// via syscall.Exec. On failure it returns an error for the caller to log
// and _exit(1) on, since by construction there is no conversation socket
// left to report FAILED on.
func RunContainerSlave() error {
	bootstrapFile := os.NewFile(fdForSlot(slotBootstrap), "bootstrap")

	data, err := io.ReadAll(bootstrapFile)
	if err != nil {
		return fmt.Errorf("read bootstrap: %w", err)
	}

	bootstrapFile.Close()

	b, err := DecodeBootstrap(data)
	if err != nil {
		return fmt.Errorf("decode bootstrap: %w", err)
	}

	if err := ValidateChrootOwnership(b.ChrootPath, b.CallerUID); err != nil {
		return fmt.Errorf("validate chroot path: %w", err)
	}

	for _, m := range b.Mountpoints {
		target := filepath.Join(b.ChrootPath, m.Name)
		if err := unix.Mount(m.HostPath, target, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("bind mount %s -> %s: %w", m.HostPath, target, err)
		}
	}

	if err := os.Chdir(b.ChrootPath); err != nil {
		return fmt.Errorf("chdir %s: %w", b.ChrootPath, err)
	}

	if err := unix.Chroot("."); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}

	slaveFD := fdForSlot(slotSlave)

	if innerMaster, innerSlave, err := openPTY(); err == nil {
		// A pty opened post-chroot is the one whose /dev/pts node the
		// caller's command will actually see; prefer it.
		innerMaster.Close()
		slaveFD = innerSlave.Fd()
	}

	if err := unix.Setgroups(nil); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}

	if b.ShareCallerNetwork {
		if err := unshareNetworkLate(); err != nil {
			return fmt.Errorf("late network unshare: %w", err)
		}
	} else if err := netutils.BringUpLoopback(); err != nil {
		// CLONE_NEWNET already happened at clone time for this case; the
		// namespace just needs its loopback interface brought up.
		return fmt.Errorf("bring up loopback: %w", err)
	}

	if err := unix.Setgid(int(b.TargetGID)); err != nil {
		return fmt.Errorf("setgid: %w", err)
	}

	if err := unix.Setuid(int(b.TargetUID)); err != nil {
		return fmt.Errorf("setuid: %w", err)
	}

	// Process is no longer privileged at this point.

	if err := unix.Dup2(int(slaveFD), 0); err != nil {
		return fmt.Errorf("dup2 stdin: %w", err)
	}

	stdoutFD := slaveFD
	stderrFD := slaveFD

	if !b.UsePty {
		stdoutFD = fdForSlot(slotPipeOutWrite)
		stderrFD = fdForSlot(slotPipeErrWrite)
	}

	if err := unix.Dup2(int(stdoutFD), 1); err != nil {
		return fmt.Errorf("dup2 stdout: %w", err)
	}

	if err := unix.Dup2(int(stderrFD), 2); err != nil {
		return fmt.Errorf("dup2 stderr: %w", err)
	}

	if b.HasX11 {
		if err := unix.Dup2(int(fdForSlot(slotX11Child)), x11ChildExecFD); err != nil {
			return fmt.Errorf("dup2 x11 control: %w", err)
		}
	}

	closeNonStandardDescriptors(b.HasX11)

	env := buildEnv(b)

	if len(b.Argv) == 0 {
		return fmt.Errorf("no command given")
	}

	return syscall.Exec(b.Argv[0], b.Argv, env)
}

func buildEnv(b Bootstrap) []string {
	env := []string{
		"HOME=" + b.Home,
		"USER=" + b.User,
		"PATH=" + b.Path,
		"TERM=" + b.Term,
		"SHELL=/bin/sh",
	}

	if b.HasX11 {
		env = append(env, fmt.Sprintf("DISPLAY=:%d.0", b.X11Display))
	}

	return env
}

// closeNonStandardDescriptors closes every fd above the ones the exec
// target needs (0-2, and 4 when X11 forwarding is active), per spec §4.5
// step 10's "set close-on-exec on all non-standard descriptors" — here
// applied as an outright close, since nothing downstream of this point
// ever needs them back.
func closeNonStandardDescriptors(keepX11 bool) {
	keep := map[int]bool{0: true, 1: true, 2: true}
	if keepX11 {
		keep[x11ChildExecFD] = true
	}

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return
	}

	for _, e := range entries {
		var fd int
		if _, err := fmt.Sscanf(e.Name(), "%d", &fd); err != nil {
			continue
		}

		if !keep[fd] {
			_ = unix.Close(fd)
		}
	}
}
