// Package oneshot runs snippet tasks on engines without a session model:
// the interpreter is launched per task, reads the interchange dump, runs the
// user fragment, writes the output dump, and exits.
package oneshot

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/interchange"
	"github.com/certxg/knime-scripting/internal/table"
)

// Engine executes one-shot snippet tasks for one language.
type Engine struct {
	lang       Language
	newCommand func(scriptPath string) enginecmd.Command
}

// New builds an engine launching the interpreter described by spec, with the
// generated script path appended as the final argument.
func New(lang Language, spec enginecmd.Spec) *Engine {
	return &Engine{
		lang: lang,
		newCommand: func(scriptPath string) enginecmd.Command {
			s := spec
			s.Args = append(append([]string(nil), spec.Args...), scriptPath)
			return s.NewCommand()
		},
	}
}

// NewWithFactory builds an engine with a custom command factory. Used by
// tests to run without a real interpreter.
func NewWithFactory(lang Language, factory func(scriptPath string) enginecmd.Command) *Engine {
	return &Engine{lang: lang, newCommand: factory}
}

// RunSnippet writes the table dump, composes and runs the script, and reads
// the output dump back. Cancelling the context kills the interpreter.
func (e *Engine) RunSnippet(ctx context.Context, t *table.Table, tctx *table.Context, fragment string) (*table.Table, error) {
	logger := ctxlog.FromContext(ctx)

	data := interchange.New(t)
	dumpPath, err := data.WriteDump()
	if err != nil {
		return nil, err
	}
	defer data.Cleanup()

	scriptPath := filepath.Join(os.TempDir(), "kscripting-"+e.lang.Name+"-"+uuid.NewString()+e.lang.Ext)
	script := e.lang.Compose(fragment, dumpPath)
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return nil, errors.Wrap(err, "oneshot: write script")
	}
	defer os.Remove(scriptPath)

	cmd := e.newCommand(scriptPath)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "oneshot: open stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "oneshot: start %s interpreter", e.lang.Name)
	}
	logger.Debug("One-shot interpreter started.", "language", e.lang.Name)

	stderrOut := make(chan []byte, 1)
	go func() {
		raw, _ := io.ReadAll(stderr)
		stderrOut <- raw
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		cmd.Kill()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, errors.Wrapf(err, "oneshot: %s snippet failed: %s", e.lang.Name, <-stderrOut)
		}
	}

	return data.ReadDump(tctx)
}
