// Package config holds the workbench configuration model and its HCL loader.
//
// A configuration tree mixes two kinds of blocks: engine/remote blocks that
// describe how to reach scripting engines, and node blocks that form
// workflows. Every file that contains at least one node block becomes one
// workflow, named after the file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the fully merged configuration.
type Model struct {
	Engines   map[string]*Engine
	Remote    *Remote
	Workflows []*Workflow
}

// Engine describes how to launch one scripting engine executable.
type Engine struct {
	Name           string
	Executable     string
	Args           []string
	Sessions       int
	StartupTimeout time.Duration
}

// Remote points snippet and plot tasks at a calculation server instead of a
// locally launched engine.
type Remote struct {
	Address string
}

// Workflow is an ordered list of nodes from one configuration file. Nodes run
// sequentially, each receiving the table produced by its predecessor.
type Workflow struct {
	Name  string
	Path  string
	Nodes []*Node
}

// Node is one scripting node. Kind selects the registered runner; Body holds
// the runner-specific arguments, decoded by the runner itself.
type Node struct {
	Kind string
	Name string
	Body hcl.Body
}

// Engine returns the named engine, or nil when it is not configured.
func (m *Model) Engine(name string) *Engine {
	return m.Engines[name]
}

// EvalContext builds the evaluation context node bodies are decoded with.
// Process environment variables are exposed as the env object, so node
// arguments can reference e.g. env.HOME.
func EvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}
