// Package rsnippet runs an R code fragment against the incoming table
// through a one-shot Rscript run.
package rsnippet

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/oneshot"
	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/internal/table"
)

const engineName = "r"

type snippetRunner interface {
	RunSnippet(ctx context.Context, t *table.Table, tctx *table.Context, fragment string) (*table.Table, error)
}

// Module implements the registry.Module interface for this package.
type Module struct {
	NewEngine func(spec enginecmd.Spec) snippetRunner
}

// Input defines the arguments for the r_snippet node.
type Input struct {
	Snippet string `hcl:"snippet"`
}

func (m *Module) onRun(ctx context.Context, deps *registry.Deps, body hcl.Body, in *table.Table) (*registry.Result, error) {
	var input Input
	if diags := gohcl.DecodeBody(body, deps.EvalCtx, &input); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode r_snippet arguments")
	}

	spec := enginecmd.Spec{Prog: "Rscript"}
	if eng := deps.Engines[engineName]; eng != nil {
		spec = enginecmd.Spec{Prog: eng.Executable, Args: eng.Args}
	}

	newEngine := m.NewEngine
	if newEngine == nil {
		newEngine = func(s enginecmd.Spec) snippetRunner { return oneshot.New(oneshot.R, s) }
	}

	out, err := newEngine(spec).RunSnippet(ctx, in, deps.TableCtx, input.Snippet)
	if err != nil {
		return nil, err
	}
	return &registry.Result{Table: out}, nil
}

// Register registers the runner with the workbench.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("r_snippet", &registry.RegisteredRunner{
		Description: "Runs an R snippet over the input table.",
		Fn:          m.onRun,
	})
}
