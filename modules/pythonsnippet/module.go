// Package pythonsnippet runs a Python code fragment against the incoming
// table through a one-shot interpreter run.
package pythonsnippet

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

const engineName = "python"

// snippetRunner is the part of oneshot.Engine the runner needs. Tests swap
// it for a fake.
type snippetRunner interface {
	RunSnippet(ctx context.Context, t *table.Table, tctx *table.Context, fragment string) (*table.Table, error)
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// NewEngine builds the interpreter engine for a launch spec. Left nil,
	// a real one-shot engine is used.
	NewEngine func(spec enginecmd.Spec) snippetRunner
}

// Input defines the arguments for the python_snippet node.
type Input struct {
	Snippet string `hcl:"snippet"`
}

func (m *Module) onRun(ctx context.Context, deps *registry.Deps, body hcl.Body, in *table.Table) (*registry.Result, error) {
	var input Input
	if diags := gohcl.DecodeBody(body, deps.EvalCtx, &input); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode python_snippet arguments")
	}

	spec := enginecmd.Spec{Prog: "python3"}
	if eng := deps.Engines[engineName]; eng != nil {
		spec = enginecmd.Spec{Prog: eng.Executable, Args: eng.Args}
	}

	newEngine := m.NewEngine
	if newEngine == nil {
		newEngine = func(s enginecmd.Spec) snippetRunner { return oneshot.New(oneshot.Python, s) }
	}

	out, err := newEngine(spec).RunSnippet(ctx, in, deps.TableCtx, input.Snippet)
	if err != nil {
		return nil, err
	}
	return &registry.Result{Table: out}, nil
}

// Register registers the runner with the workbench.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("python_snippet", &registry.RegisteredRunner{
		Description: "Runs a Python snippet over the input table.",
		Fn:          m.onRun,
	})
}
