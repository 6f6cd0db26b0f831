// Package testutil provides shared helpers for workbench system tests.
package testutil

import (
	"bytes"
	"sync"

	"github.com/certxg/knime-scripting/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// ModuleFunc adapts a plain function to the registry.Module interface, so
// tests can register ad-hoc runners without declaring a module type.
type ModuleFunc func(r *registry.Registry)

// Register implements registry.Module.
func (f ModuleFunc) Register(r *registry.Registry) { f(r) }
