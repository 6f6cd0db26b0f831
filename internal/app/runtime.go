package app

import (
	"sync"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/matlab"
	"github.com/certxg/knime-scripting/internal/matlab/pool"
	"github.com/certxg/knime-scripting/internal/rpc"
)

// defaultMatlabSpec launches MATLAB headless when no engine block overrides
// it.
var defaultMatlabSpec = enginecmd.Spec{
	Prog: "matlab",
	Args: []string{"-nodisplay", "-nosplash", "-nodesktop"},
}

// engineRuntime owns the long-lived engine plumbing behind the per-task
// clients: the local session pool and the connection to a remote calculation
// server. Both come up lazily on first use, so a workflow without MATLAB
// nodes never launches MATLAB.
type engineRuntime struct {
	model *config.Model

	mu        sync.Mutex
	ctrl      *pool.Controller
	rpcClient *rpc.Client
}

func newEngineRuntime(model *config.Model) *engineRuntime {
	return &engineRuntime{model: model}
}

// newLocalClient builds a task client backed by the local session pool.
func (rt *engineRuntime) newLocalClient() (matlab.Client, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ctrl == nil {
		spec := defaultMatlabSpec
		sessions := 1
		if eng := rt.model.Engine("matlab"); eng != nil {
			spec = enginecmd.Spec{Prog: eng.Executable, Args: eng.Args}
			sessions = eng.Sessions
		}
		rt.ctrl = pool.NewController(sessions, spec)
	}
	return matlab.NewLocal(matlab.PoolController{C: rt.ctrl}), nil
}

// newClient builds the task client the configuration asks for: remote when a
// remote block is present, local otherwise.
func (rt *engineRuntime) newClient() (matlab.Client, error) {
	if rt.model.Remote == nil {
		return rt.newLocalClient()
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.rpcClient == nil {
		c, err := rpc.Dial(rt.model.Remote.Address)
		if err != nil {
			return nil, err
		}
		rt.rpcClient = c
	}
	return matlab.NewRemote(rt.rpcClient), nil
}

// Close shuts down whatever plumbing was actually started.
func (rt *engineRuntime) Close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ctrl != nil {
		rt.ctrl.Close()
		rt.ctrl = nil
	}
	if rt.rpcClient != nil {
		rt.rpcClient.Close()
		rt.rpcClient = nil
	}
}
