package utils

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	errw "github.com/pkg/errors"
)

// PlatformSubprocessSettings puts cmd in its own process group so that hitting a deadline
// kills everything it spawned. Commands that may prompt for a sudo password must stay in
// the terminal's foreground group, so interactive commands are left alone.
func PlatformSubprocessSettings(cmd *exec.Cmd, interactive bool) {
	if interactive {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return KillTree(cmd.Process.Pid)
	}
}

// KillTree sends SIGKILL to the process group.
func KillTree(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return errw.Wrapf(err, "killing process group %d", pid)
	}
	return nil
}
