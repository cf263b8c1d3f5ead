package session

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

type recordingFilter struct {
	bytes.Buffer
	flushed int
}

func (f *recordingFilter) Flush() error {
	f.flushed++
	return nil
}

// eioReader yields its data, then fails with EIO the way a Linux pty
// master does once the child side is gone.
type eioReader struct {
	data []byte
}

func (r *eioReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestDrainOutputTreatsEIOAsEndOfStream(t *testing.T) {
	f := &recordingFilter{}
	if err := drainOutput(&eioReader{data: []byte("final output")}, f); err != nil {
		t.Fatalf("drainOutput: %v", err)
	}
	if f.String() != "final output" {
		t.Errorf("forwarded = %q, want %q", f.String(), "final output")
	}
	if f.flushed != 1 {
		t.Errorf("filter flushed %d times, want exactly once", f.flushed)
	}
}

func TestDrainOutputPlainEOF(t *testing.T) {
	f := &recordingFilter{}
	r, w := io.Pipe()
	go func() {
		_, _ = w.Write([]byte("abc"))
		_ = w.Close()
	}()
	if err := drainOutput(r, f); err != nil {
		t.Fatalf("drainOutput: %v", err)
	}
	if f.String() != "abc" {
		t.Errorf("forwarded = %q, want %q", f.String(), "abc")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want int
	}{
		{name: "clean exit", argv: []string{"sh", "-c", "exit 0"}, want: 0},
		{name: "nonzero exit", argv: []string{"sh", "-c", "exit 3"}, want: 3},
		{name: "signal-killed child", argv: []string{"sh", "-c", "kill -TERM $$"}, want: 128 + int(syscall.SIGTERM)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(tt.argv[0], tt.argv[1:]...)
			if err := cmd.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			if got := exitCode(cmd.Wait(), nil); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestWaitStatusNoHangDetectsStop walks a child through the job-control
// states the SIGCHLD path has to recognize: self-stopped, then resumed,
// then exited.
func TestWaitStatusNoHangDetectsStop(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -STOP $$; exit 7")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid

	status := awaitStatus(t, pid, func(ws syscall.WaitStatus) bool { return ws.Stopped() })
	if status.StopSignal() != syscall.SIGSTOP {
		t.Errorf("stop signal = %v, want SIGSTOP", status.StopSignal())
	}

	if err := cmd.Process.Signal(syscall.SIGCONT); err != nil {
		t.Fatalf("SIGCONT: %v", err)
	}

	status = awaitStatus(t, pid, func(ws syscall.WaitStatus) bool { return ws.Exited() })
	if status.ExitStatus() != 7 {
		t.Errorf("exit status = %d, want 7", status.ExitStatus())
	}
}

// awaitStatus polls waitStatusNoHang until the predicate holds.
func awaitStatus(t *testing.T, pid int, pred func(syscall.WaitStatus) bool) syscall.WaitStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := waitStatusNoHang(pid); ok && pred(status) {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child %d never reached the expected state", pid)
	return 0
}

// TestExitStatusPrefersReapedStatus reproduces the reaping race: the
// SIGCHLD path collects the child's status first, cmd.Wait comes back
// with ECHILD, and the wrapper must still report the child's real code.
func TestExitStatusPrefersReapedStatus(t *testing.T) {
	s, err := New([]string{"true"}, &recordingFilter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cmd := exec.Command("sh", "-c", "exit 5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var status syscall.WaitStatus
	if _, err := syscall.Wait4(cmd.Process.Pid, &status, 0, nil); err != nil {
		t.Fatalf("Wait4: %v", err)
	}
	s.setReaped(status)

	waitErr := cmd.Wait()
	if waitErr == nil {
		t.Fatal("expected cmd.Wait to fail after the child was reaped externally")
	}
	if got := s.exitStatus(waitErr); got != 5 {
		t.Errorf("exitStatus = %d, want 5", got)
	}
}

func TestHandleSignalsReturnsOnClose(t *testing.T) {
	s, err := New([]string{"true"}, &recordingFilter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sigs := make(chan os.Signal)
	done := make(chan struct{})
	go func() {
		s.handleSignals(sigs)
		close(done)
	}()

	close(sigs)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signal handler did not return after channel close")
	}
}

func TestNewRequiresCommand(t *testing.T) {
	if _, err := New(nil, &recordingFilter{}); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestNewAssignsDistinctIDs(t *testing.T) {
	a, err := New([]string{"true"}, &recordingFilter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New([]string{"true"}, &recordingFilter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("session IDs not distinct: %q vs %q", a.ID(), b.ID())
	}
}
