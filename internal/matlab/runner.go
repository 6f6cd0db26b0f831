package matlab

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/interchange"
	"github.com/certxg/knime-scripting/internal/table"
)

// PoolRunner serves remote task requests against the server-side session
// pool. Each call builds a fresh local client, so every request gets the
// full rollback/cleanup treatment of a local task.
type PoolRunner struct {
	Ctrl Controller
}

// Snippet implements the server-side snippet task: dump bytes in, dump
// bytes out.
func (p *PoolRunner) Snippet(ctx context.Context, tableType, fragment string, dump []byte) ([]byte, error) {
	tctx := table.NewContext()
	in, err := interchange.Unmarshal(tctx, dump)
	if err != nil {
		return nil, err
	}

	client := NewLocal(p.Ctrl)
	defer client.Cleanup()
	defer client.Rollback()

	out, err := client.SnippetTask(ctx, in, tctx, fragment, tableType)
	if err != nil {
		return nil, err
	}
	return interchange.Marshal(out)
}

// Plot implements the server-side plot task, returning the rendered PNG
// bytes and removing the server-local file.
func (p *PoolRunner) Plot(ctx context.Context, tableType, fragment string, dump []byte, width, height int) ([]byte, error) {
	tctx := table.NewContext()
	in, err := interchange.Unmarshal(tctx, dump)
	if err != nil {
		return nil, err
	}

	client := NewLocal(p.Ctrl)
	defer client.Cleanup()
	defer client.Rollback()

	path, err := client.PlotTask(ctx, in, fragment, width, height, tableType)
	if err != nil {
		return nil, errors.Wrap(err, "matlab: remote plot task")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "matlab: read rendered plot")
	}
	return raw, nil
}
