package session

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// watchSignals installs the session's signal handling: window-size
// propagation, termination relay, and shell job control. Signals are
// applied from their own goroutine and never block the forwarding flows.
func (s *Session) watchSignals() chan os.Signal {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs,
		syscall.SIGWINCH,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGTSTP,
		syscall.SIGCONT,
		syscall.SIGCHLD,
	)
	go s.handleSignals(sigs)
	return sigs
}

// handleSignals applies signals until the channel is closed.
func (s *Session) handleSignals(sigs <-chan os.Signal) {
	for sig := range sigs {
		switch sig {
		case syscall.SIGWINCH:
			if err := pty.InheritSize(s.stdin, s.ptmx); err != nil {
				s.logger.WithError(err).Debug("Could not propagate terminal size")
			}
		case syscall.SIGINT, syscall.SIGTERM:
			// Relay so the child can run its own shutdown handling
			// rather than dying implicitly with the wrapper.
			_ = s.cmd.Process.Signal(sig)
		case syscall.SIGTSTP:
			s.suspend()
		case syscall.SIGCONT:
			s.resume()
		case syscall.SIGCHLD:
			s.checkChildStopped()
		}
	}
}

// suspend reacts to a SIGTSTP sent to the wrapper: pass it on to the
// child, then stop ourselves.
func (s *Session) suspend() {
	_ = s.cmd.Process.Signal(syscall.SIGTSTP)
	s.stopSelf()
}

// stopSelf hands the terminal back to the shell before the wrapper
// stops: cooked mode for the shell prompt, then SIGSTOP to ourselves.
func (s *Session) stopSelf() {
	if s.savedMode != nil {
		_ = term.Restore(int(s.stdin.Fd()), s.savedMode)
	}
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGSTOP)
}

// resume re-enters raw mode after the shell foregrounds us again and
// wakes the child.
func (s *Session) resume() {
	if _, err := term.MakeRaw(int(s.stdin.Fd())); err != nil {
		s.logger.WithError(err).Warn("Failed to re-enter raw mode after resume")
	}
	_ = s.cmd.Process.Signal(syscall.SIGCONT)
}

// checkChildStopped mirrors the child's own job control: if the child
// stopped itself (its own SIGTSTP handler, or a SIGSTOP from elsewhere),
// the wrapper must hand the terminal back and stop too, or the shell is
// left without a prompt and the terminal stuck in raw mode.
func (s *Session) checkChildStopped() {
	status, ok := waitStatusNoHang(s.cmd.Process.Pid)
	if !ok {
		return
	}
	switch {
	case status.Stopped():
		s.stopSelf()
	case status.Exited() || status.Signaled():
		// Won the race against the runtime's own wait and reaped the
		// child; keep the status so the exit code survives.
		s.setReaped(status)
	}
}

// waitStatusNoHang polls the child's state without blocking, including
// stop reports.
func waitStatusNoHang(pid int) (syscall.WaitStatus, bool) {
	var status syscall.WaitStatus
	wpid, err := syscall.Wait4(pid, &status, syscall.WNOHANG|syscall.WUNTRACED, nil)
	return status, err == nil && wpid == pid
}
