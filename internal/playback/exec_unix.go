//go:build unix

package playback

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// runInteractive runs cmd the way a shell runs a foreground job: the child
// gets its own process group and the terminal for as long as it lives, and
// the supervisor sits out of the signal path until it exits.
func runInteractive(cmd *exec.Cmd) (ExitStatus, error) {
	// Ctrl-C belongs to the child while it owns the terminal. Notify, not
	// Ignore: a caught disposition resets to the default in the exec'd
	// child, while SIG_IGN would be inherited by it.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	stdinFd := int(os.Stdin.Fd())
	pgrp, err := unix.IoctlGetInt(stdinFd, unix.TIOCGPGRP)
	if err != nil {
		return ExitStatus{}, fmt.Errorf("%w: %v", ErrNoForeground, err)
	}

	// Once the child holds the terminal this process is a background group;
	// taking the terminal back would stop it with SIGTTOU unless the signal
	// is ignored. Must outlive the foreground restore below.
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("failed to spawn %s: %w", cmd.Path, err)
	}
	if unix.IoctlSetPointerInt(stdinFd, unix.TIOCSPGRP, cmd.Process.Pid) == nil {
		defer func() {
			_ = unix.IoctlSetPointerInt(stdinFd, unix.TIOCSPGRP, pgrp)
		}()
	}
	return wait(cmd)
}

func statusOf(state *os.ProcessState) ExitStatus {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal().String()}
	}
	return ExitStatus{Code: state.ExitCode()}
}
