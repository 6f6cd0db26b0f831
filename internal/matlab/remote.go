package matlab

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/interchange"
	"github.com/certxg/knime-scripting/internal/table"
)

// ErrRemoteOpen is returned by the remote variant's OpenTask: opening a table
// interactively only makes sense in a local session, and the open node always
// constructs the local variant.
var ErrRemoteOpen = errors.New("matlab: open-in-session is not supported on a remote client")

// Transport is the typed stub to the server-side counterpart. It ships the
// interchange dump over the wire and returns the engine-produced result
// bytes; the server acquires and releases its own pooled session per call.
type Transport interface {
	Snippet(ctx context.Context, tableType, fragment string, dump []byte) ([]byte, error)
	Plot(ctx context.Context, tableType, fragment string, dump []byte, width, height int) ([]byte, error)
}

// Remote forwards tasks to a session server on another machine.
type Remote struct {
	transport Transport
	plotPath  string
}

// NewRemote builds the remote client variant over a resolved transport stub.
func NewRemote(transport Transport) *Remote {
	return &Remote{transport: transport}
}

// OpenTask implements Client. Unsupported remotely; the error is explicit
// rather than a silent no-op.
func (r *Remote) OpenTask(ctx context.Context, t *table.Table, tableType string) error {
	return ErrRemoteOpen
}

// SnippetTask implements Client.
func (r *Remote) SnippetTask(ctx context.Context, t *table.Table, tctx *table.Context, fragment, tableType string) (*table.Table, error) {
	dump, err := interchange.Marshal(t)
	if err != nil {
		return nil, err
	}
	out, err := r.transport.Snippet(ctx, tableType, fragment, dump)
	if err != nil {
		return nil, err
	}
	return interchange.Unmarshal(tctx, out)
}

// PlotTask implements Client. The returned PNG bytes are persisted to a
// temporary file so local and remote variants hand back the same shape.
func (r *Remote) PlotTask(ctx context.Context, t *table.Table, fragment string, width, height int, tableType string) (string, error) {
	dump, err := interchange.Marshal(t)
	if err != nil {
		return "", err
	}
	png, err := r.transport.Plot(ctx, tableType, fragment, dump, width, height)
	if err != nil {
		return "", err
	}
	path := filepath.Join(os.TempDir(), "kscripting-plot-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", errors.Wrap(err, "matlab: write remote plot")
	}
	r.plotPath = path
	return path, nil
}

// Rollback implements Client. The remote server rolls its own leases back
// per call, so there is nothing to return here.
func (r *Remote) Rollback() {}

// Cleanup implements Client.
func (r *Remote) Cleanup() {
	if r.plotPath == "" {
		return
	}
	os.Remove(r.plotPath)
	r.plotPath = ""
}
