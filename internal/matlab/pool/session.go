package pool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/enginecmd"
)

// markerPrefix brackets the completion sentinels a wrapped command prints.
const markerPrefix = "kscripting-eval"

// Session is one leased external interpreter process. A session executes one
// command at a time; exclusivity is enforced by the pool handing a session to
// at most one client.
type Session struct {
	thread    int
	commander enginecmd.Commander

	mu      sync.Mutex
	cmd     enginecmd.Command
	stdin   io.WriteCloser
	lines   chan string
	seq     atomic.Int64
	started bool
}

func newSession(thread int, commander enginecmd.Commander) *Session {
	return &Session{thread: thread, commander: commander}
}

// Thread returns the pool slot number of this session. It is printed into the
// session output as a diagnostic and plays no scheduling role.
func (s *Session) Thread() int { return s.thread }

// ensureStarted launches the interpreter process on first use.
func (s *Session) ensureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	cmd := s.commander.NewCommand()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "matlab: open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "matlab: open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "matlab: open stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "matlab: start interpreter")
	}

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	// Keep the stderr pipe drained so the process never blocks on it.
	go io.Copy(io.Discard, stderr)

	s.cmd = cmd
	s.stdin = stdin
	s.lines = lines
	s.started = true
	return nil
}

// Eval executes one composed command in the session and blocks until the
// interpreter reports completion. The command is wrapped in a try/catch that
// prints a per-invocation sentinel, so failures surface as errors carrying
// the engine's own report.
func (s *Session) Eval(ctx context.Context, code string) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}

	seq := s.seq.Add(1)
	okMarker := fmt.Sprintf("%s-%d-ok", markerPrefix, seq)
	errMarker := fmt.Sprintf("%s-%d-err", markerPrefix, seq)

	var b strings.Builder
	b.WriteString("try\n")
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "disp('%s');\n", okMarker)
	b.WriteString("catch kscripting_err\n")
	b.WriteString("disp(getReport(kscripting_err));\n")
	fmt.Fprintf(&b, "disp('%s');\n", errMarker)
	b.WriteString("end\n")

	if _, err := io.WriteString(s.stdin, b.String()); err != nil {
		return errors.Wrap(err, "matlab: write command")
	}

	var report []string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return errors.New("matlab: session terminated during evaluation")
			}
			switch {
			case line == okMarker:
				return nil
			case line == errMarker:
				return errors.Errorf("matlab: evaluation failed:\n%s", strings.Join(report, "\n"))
			case strings.Contains(line, markerPrefix):
				// Sentinel of an abandoned earlier evaluation; ignore.
			default:
				report = append(report, line)
			}
		}
	}
}

// Close terminates the interpreter process.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.stdin.Close()
	s.cmd.Kill()
	s.cmd.Wait()
	s.started = false
}
