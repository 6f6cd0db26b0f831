// Package pool brokers exclusive leases on a bounded set of external
// interpreter sessions. Acquire blocks until a session is free; every
// acquired session must be released exactly once.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/enginecmd"
)

// Controller coordinates access to the session pool. The pool size is fixed
// at construction and caps achievable concurrency: a saturated pool
// serializes excess acquirers.
type Controller struct {
	size        int
	free        chan *Session
	outstanding atomic.Int32

	mu     sync.Mutex
	leased map[*Session]bool
}

// NewController builds a controller over size lazily started sessions, each
// launched through the given commander on first acquisition.
func NewController(size int, commander enginecmd.Commander) *Controller {
	if size < 1 {
		panic("pool: controller size must be at least 1")
	}
	c := &Controller{
		size:   size,
		free:   make(chan *Session, size),
		leased: make(map[*Session]bool, size),
	}
	for i := 1; i <= size; i++ {
		c.free <- newSession(i, commander)
	}
	return c
}

// ThreadCount returns the configured pool size.
func (c *Controller) ThreadCount() int { return c.size }

// Outstanding returns the number of currently leased sessions.
func (c *Controller) Outstanding() int { return int(c.outstanding.Load()) }

// Acquire blocks until a pooled session is available, starts its interpreter
// if needed, and prints the diagnostic slot marker into the session. On
// failure to reach the engine the session returns to the pool and a
// connection fault is reported.
func (c *Controller) Acquire(ctx context.Context) (*Session, error) {
	logger := ctxlog.FromContext(ctx)
	select {
	case s := <-c.free:
		if err := s.Eval(ctx, fmt.Sprintf("disp(' ');\ndisp('Session %d:');\n", s.Thread())); err != nil {
			c.free <- s
			return nil, errors.Wrap(err, "pool: session engine unreachable")
		}
		c.mu.Lock()
		c.leased[s] = true
		c.mu.Unlock()
		c.outstanding.Add(1)
		logger.Debug("Session acquired.", "thread", s.Thread())
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a leased session to the pool. Releasing a session that is
// not currently leased is a programming error and panics, no matter how much
// pool capacity happens to be free.
func (c *Controller) Release(s *Session) {
	c.mu.Lock()
	if !c.leased[s] {
		c.mu.Unlock()
		panic("pool: release of a session that is not outstanding")
	}
	delete(c.leased, s)
	c.mu.Unlock()
	c.outstanding.Add(-1)
	// Cannot block: every leased session has a reserved slot.
	c.free <- s
}

// Close terminates all idle sessions. Leased sessions are closed by their
// holders returning them first; Close only drains what is currently free.
func (c *Controller) Close() {
	for {
		select {
		case s := <-c.free:
			s.Close()
		default:
			return
		}
	}
}
