// Package matlabsnippet runs a MATLAB code fragment against the incoming
// table and replaces it with the fragment's mOut.
package matlabsnippet

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

// Input defines the arguments for the matlab_snippet node.
type Input struct {
	Snippet   string `hcl:"snippet"`
	TableType string `hcl:"table_type,optional"`
}

// OnRunSnippet executes the snippet through a fresh task client and returns
// the table the snippet produced.
func OnRunSnippet(ctx context.Context, deps *registry.Deps, body hcl.Body, in *table.Table) (*registry.Result, error) {
	var input Input
	if diags := gohcl.DecodeBody(body, deps.EvalCtx, &input); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode matlab_snippet arguments")
	}

	client, err := deps.NewClient()
	if err != nil {
		return nil, err
	}
	defer client.Cleanup()
	defer client.Rollback()

	out, err := client.SnippetTask(ctx, in, deps.TableCtx, input.Snippet, input.TableType)
	if err != nil {
		return nil, err
	}
	return &registry.Result{Table: out}, nil
}

// Register registers the runner with the workbench.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("matlab_snippet", &registry.RegisteredRunner{
		Description: "Runs a MATLAB snippet over the input table.",
		Fn:          OnRunSnippet,
	})
}
