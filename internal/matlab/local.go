package matlab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/interchange"
	"github.com/certxg/knime-scripting/internal/snippet"
	"github.com/certxg/knime-scripting/internal/table"
)

// Local runs tasks against the in-process session pool. A Local client is
// meant for one task at a time; the held-session slot exists solely so an
// interrupted task can be rolled back without leaking its lease.
type Local struct {
	ctrl Controller

	mu     sync.Mutex
	held   Session
	logger *slog.Logger

	code *snippet.Composer
	data *interchange.Adapter
}

// NewLocal builds the pool-backed client variant.
func NewLocal(ctrl Controller) *Local {
	return &Local{ctrl: ctrl}
}

// acquire leases a session and records it for emergency release. The task's
// context logger is kept alongside so Rollback, which has no context of its
// own, reports through the same logger as the task that abandoned the lease.
func (l *Local) acquire(ctx context.Context) (Session, error) {
	s, err := l.ctrl.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.held = s
	l.logger = ctxlog.FromContext(ctx)
	l.mu.Unlock()
	return s, nil
}

// release returns the session and clears the held-session slot.
func (l *Local) release(s Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == s {
		l.held = nil
	}
	l.ctrl.Release(s)
}

// OpenTask implements Client. The session deliberately keeps the imported
// variable after the lease returns, supporting interactive follow-up.
func (l *Local) OpenTask(ctx context.Context, t *table.Table, tableType string) error {
	l.data = interchange.New(t)
	path, err := l.data.WriteDump()
	if err != nil {
		return err
	}
	l.code = snippet.NewComposer("", path, tableType)
	cmd := l.code.PrepareOpenCode()

	s, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	evalErr := s.Eval(ctx, cmd)
	l.release(s)
	return evalErr
}

// SnippetTask implements Client.
func (l *Local) SnippetTask(ctx context.Context, t *table.Table, tctx *table.Context, fragment, tableType string) (*table.Table, error) {
	l.data = interchange.New(t)
	path, err := l.data.WriteDump()
	if err != nil {
		return nil, err
	}
	l.code = snippet.NewComposer(fragment, path, tableType)
	cmd, err := l.code.PrepareSnippetCode()
	if err != nil {
		return nil, err
	}

	s, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Eval(ctx, cmd); err != nil {
		l.release(s)
		return nil, err
	}
	confirm := fmt.Sprintf("disp('executed snippet and updated %s');", snippet.OutputVariable)
	if err := s.Eval(ctx, confirm); err != nil {
		l.release(s)
		return nil, err
	}
	l.release(s)

	return l.data.ReadDump(tctx)
}

// PlotTask implements Client.
func (l *Local) PlotTask(ctx context.Context, t *table.Table, fragment string, width, height int, tableType string) (string, error) {
	l.data = interchange.New(t)
	path, err := l.data.WriteDump()
	if err != nil {
		return "", err
	}
	l.code = snippet.NewComposer(fragment, path, tableType)
	cmd, err := l.code.PreparePlotCode(width, height)
	if err != nil {
		return "", err
	}

	s, err := l.acquire(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Eval(ctx, cmd); err != nil {
		l.release(s)
		return "", err
	}
	l.release(s)

	return l.code.PlotFile(), nil
}

// Rollback implements Client: if a session lease is still outstanding it is
// force-returned to the pool. Calling it with nothing held is a no-op.
func (l *Local) Rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	if l.held == nil {
		logger.Debug("Rollback: no session held.")
		return
	}
	s := l.held
	l.held = nil
	l.ctrl.Release(s)
	logger.Warn("Emergency session return.", "thread", s.Thread())
}

// Cleanup implements Client, deleting the interchange dump and any generated
// script files. Idempotent, safe before any task ran.
func (l *Local) Cleanup() {
	if l.code != nil {
		l.code.Cleanup()
	}
	if l.data != nil {
		l.data.Cleanup()
	}
}
