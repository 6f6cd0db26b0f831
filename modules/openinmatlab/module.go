// Package openinmatlab pushes the incoming table into a local MATLAB session
// so it can be inspected interactively. The table passes through unchanged.
package openinmatlab

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/internal/table"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the open_in_matlab node.
type Input struct {
	TableType string `hcl:"table_type,optional"`
}

// OnRunOpen loads the table into a local session as kIn. Remote servers
// cannot serve this task, so the local client is used regardless of any
// remote configuration.
func OnRunOpen(ctx context.Context, deps *registry.Deps, body hcl.Body, in *table.Table) (*registry.Result, error) {
	var input Input
	if diags := gohcl.DecodeBody(body, deps.EvalCtx, &input); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode open_in_matlab arguments")
	}

	client, err := deps.NewLocalClient()
	if err != nil {
		return nil, err
	}
	defer client.Cleanup()
	defer client.Rollback()

	if err := client.OpenTask(ctx, in, input.TableType); err != nil {
		return nil, err
	}
	return &registry.Result{}, nil
}

// Register registers the runner with the workbench.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("open_in_matlab", &registry.RegisteredRunner{
		Description: "Loads the input table into an interactive MATLAB session.",
		Fn:          OnRunOpen,
	})
}
