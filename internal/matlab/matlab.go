// Package matlab exposes the scripting tasks workbench nodes delegate to a
// MATLAB session: open a table interactively, run a snippet over it, or
// render a plot. The same three-operation contract is served by two client
// variants, a local session-pool client and a remote client proxying to a
// server-side counterpart.
package matlab

import (
	"context"

	"github.com/certxg/knime-scripting/internal/matlab/pool"
	"github.com/certxg/knime-scripting/internal/table"
)

// Client is the task contract shared by the local and remote variants.
//
// Contract:
//   - At most one session handle is outstanding per client instance.
//   - Rollback force-returns an outstanding handle (emergency path on
//     interruption) and is an idempotent no-op otherwise.
//   - Cleanup releases temporary resources (interchange dump, generated
//     script files) unconditionally and idempotently.
type Client interface {
	// OpenTask loads the table into the session as the input variable and
	// leaves the session open for interactive follow-up. No result is read
	// back.
	OpenTask(ctx context.Context, t *table.Table, tableType string) error

	// SnippetTask runs the user fragment over the table and returns the
	// table the fragment left in the output variable.
	SnippetTask(ctx context.Context, t *table.Table, tctx *table.Context, fragment, tableType string) (*table.Table, error)

	// PlotTask renders the fragment's figure at the given pixel dimensions
	// and returns the path of the PNG file. The caller owns the file.
	PlotTask(ctx context.Context, t *table.Table, fragment string, width, height int, tableType string) (string, error)

	Rollback()
	Cleanup()
}

// Session is one leased interpreter session, executing a single composed
// command at a time.
type Session interface {
	Eval(ctx context.Context, code string) error
	Thread() int
}

// Controller brokers exclusive session leases for the local client.
type Controller interface {
	Acquire(ctx context.Context) (Session, error)
	Release(s Session)
}

// PoolController adapts a *pool.Controller to the Controller seam.
type PoolController struct {
	C *pool.Controller
}

// Acquire implements Controller.
func (p PoolController) Acquire(ctx context.Context) (Session, error) {
	s, err := p.C.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Release implements Controller.
func (p PoolController) Release(s Session) {
	p.C.Release(s.(*pool.Session))
}
