package pool

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/enginecmd/enginecmdtest"
)

// matlabHandler emulates just enough interpreter behavior for the session
// protocol: it echoes disp('...') arguments and honors the try/catch sentinel
// contract, failing a block when it contains an error(...) call.
func matlabHandler(record func(string)) enginecmdtest.Handler {
	failed := false
	return func(line string, stdout io.Writer) {
		if record != nil {
			record(line)
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "try":
			failed = false
		case strings.Contains(trimmed, "error("):
			failed = true
		case strings.HasPrefix(trimmed, "disp('"):
			arg := strings.TrimSuffix(strings.TrimPrefix(trimmed, "disp('"), "');")
			if strings.HasSuffix(arg, "-ok") && failed {
				return
			}
			if strings.HasSuffix(arg, "-err") && !failed {
				return
			}
			fmt.Fprintln(stdout, arg)
		}
	}
}

func fakeCommander(record func(string)) enginecmd.Commander {
	return enginecmdtest.CommanderFunc(func() enginecmd.Command {
		c := enginecmdtest.New()
		c.Handler = matlabHandler(record)
		return c
	})
}

func TestAcquireEvalRelease(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	record := func(line string) {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
	}

	c := NewController(1, fakeCommander(record))
	defer c.Close()

	s, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, s.Thread())
	require.Equal(t, 1, c.Outstanding())

	require.NoError(t, s.Eval(context.Background(), "disp('hello');"))

	c.Release(s)
	require.Equal(t, 0, c.Outstanding())

	// The acquisition printed its diagnostic slot marker into the session.
	mu.Lock()
	joined := strings.Join(seen, "\n")
	mu.Unlock()
	require.Contains(t, joined, "disp('Session 1:');")
}

func TestEval_EngineFault(t *testing.T) {
	c := NewController(1, fakeCommander(nil))
	defer c.Close()

	s, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release(s)

	err = s.Eval(context.Background(), "error('boom');")
	require.ErrorContains(t, err, "evaluation failed")

	// The session survives a failed evaluation.
	require.NoError(t, s.Eval(context.Background(), "disp('still alive');"))
}

func TestAcquire_BlocksWhenSaturated(t *testing.T) {
	c := NewController(1, fakeCommander(nil))
	defer c.Close()

	s, err := c.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	c.Release(s)
	s2, err := c.Acquire(context.Background())
	require.NoError(t, err)
	c.Release(s2)
}

func TestPool_NeverExceedsCapacity(t *testing.T) {
	const capacity = 2
	const tasks = 16

	c := NewController(capacity, fakeCommander(nil))
	defer c.Close()

	var peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}

			if n := int32(c.Outstanding()); n > peak.Load() {
				peak.Store(n)
			}
			assert.LessOrEqual(t, c.Outstanding(), capacity)

			assert.NoError(t, s.Eval(context.Background(), "disp('work');"))
			c.Release(s)
		}()
	}
	wg.Wait()

	require.Equal(t, 0, c.Outstanding())
	require.LessOrEqual(t, int(peak.Load()), capacity)
	require.Positive(t, peak.Load())
}

func TestAcquire_ConnectionFaultReturnsSlot(t *testing.T) {
	boom := errors.New("no interpreter installed")
	commander := enginecmdtest.CommanderFunc(func() enginecmd.Command {
		c := enginecmdtest.New()
		c.StartErr = boom
		return c
	})

	c := NewController(1, commander)

	_, err := c.Acquire(context.Background())
	require.ErrorContains(t, err, "session engine unreachable")
	require.Equal(t, 0, c.Outstanding())

	// The slot went back to the pool: a second attempt fails the same way
	// instead of deadlocking.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.Acquire(ctx)
	require.ErrorContains(t, err, "session engine unreachable")
}

func TestRelease_DoubleReleasePanics(t *testing.T) {
	c := NewController(1, fakeCommander(nil))
	defer c.Close()

	s, err := c.Acquire(context.Background())
	require.NoError(t, err)

	c.Release(s)
	require.Panics(t, func() { c.Release(s) })
}

func TestRelease_DoubleReleaseWithFreeCapacityPanics(t *testing.T) {
	c := NewController(2, fakeCommander(nil))
	defer c.Close()

	a, err := c.Acquire(context.Background())
	require.NoError(t, err)
	b, err := c.Acquire(context.Background())
	require.NoError(t, err)

	// One session stays leased, so the free channel has spare capacity. A
	// second release of the same session must still panic rather than
	// enqueue it twice.
	c.Release(a)
	require.Panics(t, func() { c.Release(a) })
	require.Equal(t, 1, c.Outstanding())

	// The surviving lease is unaffected and the pool never hands the same
	// session to two acquirers.
	s1, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotSame(t, b, s1)
	c.Release(s1)
	c.Release(b)
	require.Equal(t, 0, c.Outstanding())
}

func TestDistinctThreadNumbers(t *testing.T) {
	c := NewController(3, fakeCommander(nil))
	defer c.Close()

	threads := make(map[int]bool)
	var held []*Session
	for i := 0; i < 3; i++ {
		s, err := c.Acquire(context.Background())
		require.NoError(t, err)
		threads[s.Thread()] = true
		held = append(held, s)
	}
	require.Len(t, threads, 3)
	for _, s := range held {
		c.Release(s)
	}
}
