//go:build !unix

package sandbox

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// killProcessGroup only reaches the direct child on this platform
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func exitCodeOf(state *os.ProcessState) int {
	if state == nil {
		return ExitCodeFailure
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return ExitCodeFailure
}

func memoryUsedMB(*os.ProcessState) *float64 {
	return nil
}
