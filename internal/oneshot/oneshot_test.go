package oneshot

import (
	"context"
	"io"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/enginecmd/enginecmdtest"
	"github.com/certxg/knime-scripting/internal/table"
)

var dumpPathRe = regexp.MustCompile(`open\("([^"]+)"\)`)

func inputTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(table.Column{Name: "value", Kind: table.Double, Values: []any{1.0, 2.0, 3.0}})
	require.NoError(t, err)
	return tbl
}

// interpreterFake emulates a one-shot interpreter run: it reads the
// generated script, finds the dump path, and rewrites the dump like a real
// snippet would.
func interpreterFake(t *testing.T, scriptSeen *string, dumpSeen *string) func(string) enginecmd.Command {
	return func(scriptPath string) enginecmd.Command {
		c := enginecmdtest.New()
		c.RunFunc = func(stdout, stderr io.Writer) error {
			raw, err := os.ReadFile(scriptPath)
			if err != nil {
				return err
			}
			*scriptSeen = string(raw)
			m := dumpPathRe.FindStringSubmatch(string(raw))
			if m == nil {
				return errors.New("no dump path in script")
			}
			*dumpSeen = m[1]
			out := `{"columns":[{"name":"tripled","kind":"double","values":[3,6,9]}]}`
			return os.WriteFile(m[1], []byte(out), 0o600)
		}
		return c
	}
}

func TestRunSnippet(t *testing.T) {
	var script, dump string
	e := NewWithFactory(Python, interpreterFake(t, &script, &dump))

	out, err := e.RunSnippet(context.Background(), inputTable(t), table.NewContext(), `mOut["tripled"] = [v * 3 for v in kIn["value"]]`)
	require.NoError(t, err)

	col, ok := out.Column("tripled")
	require.True(t, ok)
	require.Len(t, col.Values, 3)

	// The composed script embeds the fragment between load and save
	// boilerplate.
	require.Contains(t, script, "import json")
	require.Contains(t, script, `mOut["tripled"]`)
	require.Contains(t, script, "json.dump")

	// Dump and script are cleaned up after the task.
	require.NoFileExists(t, dump)
}

func TestRunSnippet_InterpreterFault(t *testing.T) {
	factory := func(scriptPath string) enginecmd.Command {
		c := enginecmdtest.New()
		c.RunFunc = func(stdout, stderr io.Writer) error {
			io.WriteString(stderr, "NameError: name 'frobnicate' is not defined")
			return errors.New("exit status 1")
		}
		return c
	}
	e := NewWithFactory(Python, factory)

	_, err := e.RunSnippet(context.Background(), inputTable(t), table.NewContext(), "frobnicate()")
	require.ErrorContains(t, err, "python snippet failed")
	require.ErrorContains(t, err, "NameError")
}

func TestRunSnippet_Canceled(t *testing.T) {
	factory := func(scriptPath string) enginecmd.Command {
		c := enginecmdtest.New()
		c.RunFunc = func(stdout, stderr io.Writer) error {
			select {
			case <-c.Killed():
				return errors.New("killed")
			case <-time.After(10 * time.Second):
				return nil
			}
		}
		return c
	}
	e := NewWithFactory(Python, factory)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.RunSnippet(ctx, inputTable(t), table.NewContext(), "pass")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompose(t *testing.T) {
	py := Python.Compose(`mOut["x"] = [1]`, "/tmp/dump.json")
	require.Contains(t, py, `open("/tmp/dump.json")`)
	require.Contains(t, py, `mOut["x"] = [1]`)

	r := R.Compose("mOut$x <- c(1)", "/tmp/dump.json")
	require.Contains(t, r, `fromJSON("/tmp/dump.json"`)
	require.Contains(t, r, "mOut$x <- c(1)")
	require.Contains(t, r, "library(jsonlite)")
}
