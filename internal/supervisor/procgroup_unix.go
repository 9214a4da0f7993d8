//go:build unix

package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// ownProcessGroup makes the worker lead a new process group, so test
// processes it started can be found after the worker itself is gone
func ownProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(pgid int) error {
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pgid, err)
	}
	return nil
}
