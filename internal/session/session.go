// Package session owns the pty-wrapped child process: pty allocation, raw
// terminal mode, signal relay, window sizing, and bidirectional forwarding.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/yosagi/osc-tap/internal/logging"
)

// OutputFilter sits between the pty master and the real terminal output.
// The OSC scanner implements it; Flush is called once at end of stream.
type OutputFilter interface {
	io.Writer
	Flush() error
}

// Session wraps one command invocation in a pty. It requires an
// interactive terminal on stdin; running with redirected I/O is
// unsupported.
type Session struct {
	id      uuid.UUID
	command []string
	filter  OutputFilter

	stdin  *os.File
	logger *logrus.Entry

	cmd  *exec.Cmd
	ptmx *os.File

	savedMode   *term.State
	restoreOnce sync.Once

	// reaped holds a wait status collected by the SIGCHLD path when it
	// wins the reaping race against cmd.Wait.
	reapedMu sync.Mutex
	reaped   *syscall.WaitStatus
}

// New prepares a session running command (argv form) with its output
// routed through filter.
func New(command []string, filter OutputFilter) (*Session, error) {
	if len(command) == 0 {
		return nil, errors.New("no command given")
	}
	id := uuid.New()
	return &Session{
		id:      id,
		command: command,
		filter:  filter,
		stdin:   os.Stdin,
		logger:  logging.NewLogger("session").WithField("session", id.String()),
	}, nil
}

// ID returns the session's identifier, for diagnostic correlation.
func (s *Session) ID() string {
	return s.id.String()
}

// Run starts the child attached to a fresh pty slave and forwards terminal
// I/O until the child exits. It returns the wrapper's exit code: the
// child's own, or 128+signal if the child was signal-killed. The real
// terminal's mode is restored exactly once on every path out of here.
func (s *Session) Run() (int, error) {
	stdinFd := int(s.stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return 1, errors.New("an interactive terminal is required on stdin")
	}

	s.cmd = exec.Command(s.command[0], s.command[1:]...)
	ptmx, err := pty.Start(s.cmd)
	if err != nil {
		return 1, fmt.Errorf("failed to start %s under a pty: %w", s.command[0], err)
	}
	s.ptmx = ptmx
	defer ptmx.Close()

	if err := pty.InheritSize(s.stdin, ptmx); err != nil {
		s.logger.WithError(err).Debug("Could not apply initial terminal size")
	}

	savedMode, err := term.MakeRaw(stdinFd)
	if err != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
		return 1, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	s.savedMode = savedMode
	defer s.restoreTerminal()

	sigs := s.watchSignals()
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()

	// Direction A: real input straight to the pty. The goroutine stays
	// blocked on the final stdin read after the child exits; the process
	// is about to exit anyway.
	go func() {
		_, _ = io.Copy(ptmx, s.stdin)
	}()

	// Direction B: pty output through the scanner to the real output.
	// Returns when the child exits and the pty reports end of stream.
	if err := drainOutput(ptmx, s.filter); err != nil {
		s.logger.WithError(err).Warn("Output forwarding stopped early")
		// The real terminal is gone or unwritable; let the child know.
		_ = s.cmd.Process.Signal(syscall.SIGHUP)
	}

	return s.exitStatus(s.cmd.Wait()), nil
}

func (s *Session) setReaped(status syscall.WaitStatus) {
	s.reapedMu.Lock()
	defer s.reapedMu.Unlock()
	s.reaped = &status
}

// exitStatus maps the wait result to the wrapper's exit code, preferring
// a status already reaped by the SIGCHLD path when cmd.Wait lost the
// race and came back empty-handed.
func (s *Session) exitStatus(waitErr error) int {
	s.reapedMu.Lock()
	reaped := s.reaped
	s.reapedMu.Unlock()

	if waitErr != nil && reaped != nil {
		if reaped.Signaled() {
			return 128 + int(reaped.Signal())
		}
		return reaped.ExitStatus()
	}
	return exitCode(waitErr, s.logger)
}

// restoreTerminal puts the real terminal back into its saved mode. Runs at
// most once regardless of which exit path triggers it.
func (s *Session) restoreTerminal() {
	s.restoreOnce.Do(func() {
		if s.savedMode == nil {
			return
		}
		if err := term.Restore(int(s.stdin.Fd()), s.savedMode); err != nil {
			s.logger.WithError(err).Warn("Failed to restore terminal mode")
		}
	})
}

// drainOutput copies pty output through the filter until end of stream,
// then flushes the filter so any held bytes reach the terminal. On Linux
// the master read fails with EIO once no process holds the slave open;
// that is the normal end-of-stream signal, not an error.
func drainOutput(r io.Reader, filter OutputFilter) error {
	_, err := io.Copy(filter, r)
	if errors.Is(err, syscall.EIO) {
		err = nil
	}
	if flushErr := filter.Flush(); err == nil {
		err = flushErr
	}
	return err
}

// exitCode maps the child's wait result to the wrapper's exit code.
func exitCode(waitErr error, logger *logrus.Entry) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	if logger != nil {
		logger.WithError(waitErr).Warn("Failed to reap child process")
	}
	return 1
}
