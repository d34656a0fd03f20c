//go:build !windows

package lifecycle

import (
	"os/exec"
	"syscall"
)

// The tool runs in its own process group so that helpers it spawns (yt-dlp
// launches ffmpeg) receive the same signals.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interrupt(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func kill(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
