// Package enginecmdtest provides an in-memory enginecmd.Command double for
// exercising session and one-shot engines without spawning processes.
package enginecmdtest

import (
	"bufio"
	"io"
	"sync"

	"github.com/certxg/knime-scripting/internal/enginecmd"
)

// CommanderFunc adapts a factory function to the enginecmd.Commander
// interface.
type CommanderFunc func() enginecmd.Command

// NewCommand implements enginecmd.Commander.
func (f CommanderFunc) NewCommand() enginecmd.Command { return f() }

// Handler reacts to one line arriving on the fake process's stdin and may
// write to its stdout, emulating an interactive interpreter.
type Handler func(line string, stdout io.Writer)

// Command is a scriptable stand-in for an interpreter process. Exactly one of
// Handler (interactive session protocol) or RunFunc (one-shot run) should be
// set before Start.
type Command struct {
	Handler  Handler
	RunFunc  func(stdout, stderr io.Writer) error
	StartErr error

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	done    chan struct{}
	killed  chan struct{}
	runErr  error
	killMu  sync.Mutex
	started bool
}

// New builds a fake command with its pipes wired up.
func New() *Command {
	c := &Command{done: make(chan struct{}), killed: make(chan struct{})}
	c.stdinR, c.stdinW = io.Pipe()
	c.stdoutR, c.stdoutW = io.Pipe()
	c.stderrR, c.stderrW = io.Pipe()
	return c
}

func (c *Command) StdinPipe() (io.WriteCloser, error) { return c.stdinW, nil }
func (c *Command) StdoutPipe() (io.ReadCloser, error) { return c.stdoutR, nil }
func (c *Command) StderrPipe() (io.ReadCloser, error) { return c.stderrR, nil }

// Start launches the fake process loop.
func (c *Command) Start() error {
	if c.StartErr != nil {
		return c.StartErr
	}
	c.killMu.Lock()
	c.started = true
	c.killMu.Unlock()

	go func() {
		defer close(c.done)
		defer c.stdoutW.Close()
		defer c.stderrW.Close()

		if c.RunFunc != nil {
			c.runErr = c.RunFunc(c.stdoutW, c.stderrW)
			return
		}
		scanner := bufio.NewScanner(c.stdinR)
		for scanner.Scan() {
			if c.Handler != nil {
				c.Handler(scanner.Text(), c.stdoutW)
			}
		}
	}()
	return nil
}

// Wait blocks until the fake process loop finishes.
func (c *Command) Wait() error {
	<-c.done
	return c.runErr
}

// Killed is closed when Kill is called; RunFunc implementations can select
// on it to emulate process termination.
func (c *Command) Killed() <-chan struct{} { return c.killed }

// Kill tears the pipes down, unblocking any reader or writer.
func (c *Command) Kill() {
	c.killMu.Lock()
	defer c.killMu.Unlock()
	select {
	case <-c.killed:
	default:
		close(c.killed)
	}
	c.stdinR.CloseWithError(io.ErrClosedPipe)
	c.stdinW.CloseWithError(io.ErrClosedPipe)
	c.stdoutR.CloseWithError(io.ErrClosedPipe)
}
