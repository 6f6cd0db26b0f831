// Package enginecmd abstracts process creation for external scripting
// engines, so session and one-shot runners can be tested without a real
// interpreter on the machine.
package enginecmd

import (
	"io"
	"os/exec"
)

// Command is one external interpreter process.
type Command interface {
	Start() error
	Wait() error

	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)

	Kill()
}

// Commander creates commands.
type Commander interface {
	NewCommand() Command
}

// Spec holds what is needed to launch an interpreter process. It implements
// Commander for the os/exec-backed default.
type Spec struct {
	Prog string
	Args []string
	Env  []string
}

type killCmd struct {
	*exec.Cmd
}

func (k killCmd) Kill() {
	if k.Process != nil {
		k.Process.Kill()
	}
}

// NewCommand builds an os/exec command from the spec.
func (s Spec) NewCommand() Command {
	cmd := exec.Command(s.Prog, s.Args...)
	cmd.Env = s.Env
	return killCmd{Cmd: cmd}
}
