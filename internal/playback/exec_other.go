//go:build !unix

package playback

import (
	"os"
	"os/exec"
)

// runInteractive degrades to a plain synchronous wait where the unix
// job-control model does not exist; the terminal handoff is a no-op.
func runInteractive(cmd *exec.Cmd) (ExitStatus, error) {
	return runPlain(cmd)
}

func statusOf(state *os.ProcessState) ExitStatus {
	return ExitStatus{Code: state.ExitCode()}
}
