package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_PositionalWorkflowPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"workflows/"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.Equal(t, "workflows/", cfg.WorkflowPath)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 4, cfg.WorkerCount)
}

func TestParse_Flags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-workflow", "wf.hcl",
		"-config", "engines.hcl",
		"-log-format", "text",
		"-log-level", "debug",
		"-workers", "8",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.Equal(t, "wf.hcl", cfg.WorkflowPath)
	require.Equal(t, "engines.hcl", cfg.ConfigPath)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8, cfg.WorkerCount)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	require.True(t, exit)
	require.Nil(t, cfg)
	require.Contains(t, out.String(), "WORKFLOW_PATH")
}

func TestParse_InvalidLogFormat(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-log-format", "yaml", "wf.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestParse_InvalidLogLevel(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-log-level", "loud", "wf.hcl"}, &out)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Contains(t, exitErr.Message, "invalid log-level")
}
