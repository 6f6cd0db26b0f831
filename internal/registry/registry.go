// Package registry maps node kinds from workflow configuration to the
// compiled Go runners that implement them.
//
// The registry is populated once at startup and then validated against the
// loaded configuration, so an unknown node kind fails before any workflow
// starts running.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/matlab"
	"github.com/certxg/knime-scripting/internal/table"
)

// Deps carries the shared collaborators runners draw on. Client factories
// build a fresh per-task client so every node gets its own rollback and
// cleanup lifecycle.
type Deps struct {
	// NewClient builds the task client the workbench is configured for:
	// remote when a remote block is present, local otherwise.
	NewClient func() (matlab.Client, error)
	// NewLocalClient always builds a local client. Open-in-engine tasks use
	// it because an interactive window cannot be opened on a remote server.
	NewLocalClient func() (matlab.Client, error)
	Engines        map[string]*config.Engine
	TableCtx       *table.Context
	EvalCtx        *hcl.EvalContext
}

// Result is what one node run produces. A nil Table means the node passes
// its input through unchanged.
type Result struct {
	Table     *table.Table
	ImagePath string
}

// RunFunc executes one node. The body holds the node's own arguments; in is
// the table produced by the previous node in the workflow.
type RunFunc func(ctx context.Context, deps *Deps, body hcl.Body, in *table.Table) (*Result, error)

// RegisteredRunner holds the compiled Go parts of one node kind.
type RegisteredRunner struct {
	Description string
	Fn          RunFunc
}

// Module is the interface all core modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry stores the node kind to runner mapping.
type Registry struct {
	runners map[string]*RegisteredRunner
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{runners: make(map[string]*RegisteredRunner)}
}

// RegisterRunner registers a runner for a node kind. Registering the same
// kind twice is a programmer error.
func (r *Registry) RegisterRunner(kind string, rr *RegisteredRunner) {
	if _, exists := r.runners[kind]; exists {
		panic(fmt.Sprintf("runner for node kind '%s' already registered", kind))
	}
	if rr == nil || rr.Fn == nil {
		panic(fmt.Sprintf("runner for node kind '%s' has no run function", kind))
	}
	slog.Debug("Registering node runner.", "kind", kind)
	r.runners[kind] = rr
}

// Runner returns the runner for a node kind.
func (r *Registry) Runner(kind string) (*RegisteredRunner, bool) {
	rr, ok := r.runners[kind]
	return rr, ok
}

// Kinds returns all registered node kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.runners))
	for k := range r.runners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
