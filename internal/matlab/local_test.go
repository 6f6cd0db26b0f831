package matlab

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/snippet"
	"github.com/certxg/knime-scripting/internal/table"
)

var filereadRe = regexp.MustCompile(`fileread\('([^']+)'\)`)

type fakeSession struct {
	thread int
	onEval func(ctx context.Context, code string) error
	evals  []string
}

func (s *fakeSession) Eval(ctx context.Context, code string) error {
	s.evals = append(s.evals, code)
	if s.onEval != nil {
		return s.onEval(ctx, code)
	}
	return nil
}

func (s *fakeSession) Thread() int { return s.thread }

type fakeController struct {
	sess       *fakeSession
	acquireErr error
	acquired   int
	released   int
}

func (c *fakeController) Acquire(ctx context.Context) (Session, error) {
	if c.acquireErr != nil {
		return nil, c.acquireErr
	}
	c.acquired++
	return c.sess, nil
}

func (c *fakeController) Release(s Session) { c.released++ }

func inputTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(table.Column{Name: "value", Kind: table.Double, Values: []any{1.0, 2.0}})
	require.NoError(t, err)
	return tbl
}

// snippetEval emulates the engine side of a snippet task: it locates the
// interchange dump referenced by the composed command and rewrites it under
// the output-variable convention.
func snippetEval(t *testing.T, dumpSeen *string) func(ctx context.Context, code string) error {
	return func(ctx context.Context, code string) error {
		m := filereadRe.FindStringSubmatch(code)
		if m == nil {
			return nil // confirmation disp, nothing to do
		}
		*dumpSeen = m[1]
		out := `{"columns":[{"name":"doubled","kind":"double","values":[2,4]}]}`
		return os.WriteFile(m[1], []byte(out), 0o600)
	}
}

func TestLocal_SnippetTask(t *testing.T) {
	var dump string
	sess := &fakeSession{thread: 1}
	sess.onEval = snippetEval(t, &dump)
	ctrl := &fakeController{sess: sess}

	l := NewLocal(ctrl)
	defer l.Cleanup()
	defer l.Rollback()

	out, err := l.SnippetTask(context.Background(), inputTable(t), table.NewContext(), "mOut.doubled = kIn.value * 2;", "")
	require.NoError(t, err)

	col, ok := out.Column("doubled")
	require.True(t, ok)
	require.Len(t, col.Values, 2)

	// Lease returned through the normal path, confirmation marker evaluated.
	require.Equal(t, 1, ctrl.acquired)
	require.Equal(t, 1, ctrl.released)
	require.Len(t, sess.evals, 2)
	require.Contains(t, sess.evals[1], "executed snippet and updated "+snippet.OutputVariable)

	// Cleanup removes the dump the engine wrote to.
	require.FileExists(t, dump)
	l.Cleanup()
	require.NoFileExists(t, dump)
}

func TestLocal_OpenTask(t *testing.T) {
	sess := &fakeSession{thread: 2}
	ctrl := &fakeController{sess: sess}

	l := NewLocal(ctrl)
	defer l.Cleanup()

	require.NoError(t, l.OpenTask(context.Background(), inputTable(t), snippet.TableTypeMap))

	require.Equal(t, 1, ctrl.acquired)
	require.Equal(t, 1, ctrl.released)
	require.Len(t, sess.evals, 1)
	require.Contains(t, sess.evals[0], "jsondecode")
	require.Contains(t, sess.evals[0], snippet.InputVariable+" = ")
	require.Contains(t, sess.evals[0], "containers.Map")
}

func TestLocal_EvalFaultReleasesLease(t *testing.T) {
	var dump string
	sess := &fakeSession{thread: 1}
	sess.onEval = func(ctx context.Context, code string) error {
		if m := filereadRe.FindStringSubmatch(code); m != nil {
			dump = m[1]
		}
		return errors.New("Undefined function 'frobnicate'")
	}
	ctrl := &fakeController{sess: sess}

	l := NewLocal(ctrl)
	_, err := l.SnippetTask(context.Background(), inputTable(t), table.NewContext(), "frobnicate(kIn);", "")
	require.ErrorContains(t, err, "Undefined function")

	// The lease came back on the normal path even though eval faulted, so
	// rollback has nothing left to do.
	require.Equal(t, 1, ctrl.acquired)
	require.Equal(t, 1, ctrl.released)
	l.Rollback()
	require.Equal(t, 1, ctrl.released)

	// The dump written before the fault is still cleaned up.
	require.FileExists(t, dump)
	l.Cleanup()
	require.NoFileExists(t, dump)
}

func TestLocal_RollbackRecoversAbandonedLease(t *testing.T) {
	sess := &fakeSession{thread: 1}
	sess.onEval = func(ctx context.Context, code string) error {
		panic("session wedged")
	}
	ctrl := &fakeController{sess: sess}

	l := NewLocal(ctrl)
	require.Panics(t, func() {
		l.OpenTask(context.Background(), inputTable(t), "")
	})

	// The panic skipped the normal release; rollback recovers the lease.
	require.Equal(t, 1, ctrl.acquired)
	require.Equal(t, 0, ctrl.released)
	l.Rollback()
	require.Equal(t, 1, ctrl.released)

	// And rollback stays idempotent.
	l.Rollback()
	require.Equal(t, 1, ctrl.released)
}

func TestLocal_RollbackLogsThroughContextLogger(t *testing.T) {
	sess := &fakeSession{thread: 3}
	sess.onEval = func(ctx context.Context, code string) error {
		panic("session wedged")
	}
	ctrl := &fakeController{sess: sess}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	l := NewLocal(ctrl)
	require.Panics(t, func() {
		l.OpenTask(ctx, inputTable(t), "")
	})
	l.Rollback()

	// The emergency return went to the task's logger, not a global one.
	require.Contains(t, buf.String(), "Emergency session return.")
	require.Contains(t, buf.String(), "thread=3")
}

func TestLocal_PlotTask(t *testing.T) {
	sess := &fakeSession{thread: 1}
	ctrl := &fakeController{sess: sess}

	l := NewLocal(ctrl)
	defer l.Cleanup()

	path, err := l.PlotTask(context.Background(), inputTable(t), "plot(kIn.value);", 640, 480, "")
	require.NoError(t, err)
	require.NotEmpty(t, path)

	require.Equal(t, 1, ctrl.released)
	require.Contains(t, sess.evals[0], "[0 0 640 480]")
	require.Contains(t, sess.evals[0], path)
}

func TestLocal_AcquireFault(t *testing.T) {
	ctrl := &fakeController{acquireErr: errors.New("session engine unreachable")}

	l := NewLocal(ctrl)
	defer l.Cleanup()

	err := l.OpenTask(context.Background(), inputTable(t), "")
	require.ErrorContains(t, err, "unreachable")
	require.Equal(t, 0, ctrl.released)
	l.Rollback() // nothing held, must not panic
}

func TestLocal_CleanupBeforeAnyTask(t *testing.T) {
	l := NewLocal(&fakeController{})
	l.Cleanup()
	l.Cleanup()
	l.Rollback()
}
