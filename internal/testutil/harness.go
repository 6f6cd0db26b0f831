package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certxg/knime-scripting/internal/app"
	"github.com/certxg/knime-scripting/internal/registry"
)

// HarnessResult holds the outcomes of a system test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunWorkbench writes the given configuration files into a temporary
// directory, runs a workbench over them with the provided modules, and
// returns the run error together with the captured log output.
func RunWorkbench(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunWorkbenchWithContext(context.Background(), t, files, modules...)
}

// RunWorkbenchWithContext is RunWorkbench with a caller-provided context.
func RunWorkbenchWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	cfg, err := app.NewConfig(app.Config{
		WorkflowPath: dir,
		LogFormat:    "text",
		LogLevel:     "debug",
		WorkerCount:  4,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp := app.NewApp(logBuffer, cfg, modules...)
	runErr := testApp.Run(ctx)

	if os.Getenv("KSCRIPTING_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}
	return &HarnessResult{LogOutput: logBuffer.String(), Err: runErr, App: testApp}
}
