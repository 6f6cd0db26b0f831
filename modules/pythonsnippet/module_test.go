package pythonsnippet

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/require"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/internal/table"
)

func parseBody(t *testing.T, src string) hcl.Body {
	t.Helper()
	f, diags := hclparse.NewParser().ParseHCL([]byte(src), "test.hcl")
	require.False(t, diags.HasErrors(), diags.Error())
	return f.Body
}

type fakeRunner struct {
	fragment string
	out      *table.Table
}

func (f *fakeRunner) RunSnippet(ctx context.Context, t *table.Table, tctx *table.Context, fragment string) (*table.Table, error) {
	f.fragment = fragment
	return f.out, nil
}

func TestOnRun_UsesConfiguredEngine(t *testing.T) {
	out, err := table.New(table.Column{Name: "tripled", Kind: table.Double, Values: []any{3.0}})
	require.NoError(t, err)

	runner := &fakeRunner{out: out}
	var spec enginecmd.Spec
	m := &Module{NewEngine: func(s enginecmd.Spec) snippetRunner {
		spec = s
		return runner
	}}

	r := registry.New()
	m.Register(r)
	rr, ok := r.Runner("python_snippet")
	require.True(t, ok)

	deps := &registry.Deps{
		Engines: map[string]*config.Engine{
			"python": {Name: "python", Executable: "/usr/bin/python3.12", Args: []string{"-u"}},
		},
		TableCtx: table.NewContext(),
	}
	body := parseBody(t, `snippet = "mOut['tripled'] = [v * 3 for v in kIn['value']]"`)

	res, err := rr.Fn(context.Background(), deps, body, nil)
	require.NoError(t, err)
	require.Same(t, out, res.Table)
	require.Equal(t, "/usr/bin/python3.12", spec.Prog)
	require.Equal(t, []string{"-u"}, spec.Args)
	require.Contains(t, runner.fragment, "tripled")
}

func TestOnRun_DefaultInterpreter(t *testing.T) {
	var spec enginecmd.Spec
	m := &Module{NewEngine: func(s enginecmd.Spec) snippetRunner {
		spec = s
		return &fakeRunner{}
	}}

	deps := &registry.Deps{TableCtx: table.NewContext()}
	_, err := m.onRun(context.Background(), deps, parseBody(t, `snippet = "pass"`), nil)
	require.NoError(t, err)
	require.Equal(t, "python3", spec.Prog)
}
