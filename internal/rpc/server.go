package rpc

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/gogo/protobuf/proto"
	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/rpc/matlabrpc"
)

// TaskRunner executes tasks against the server-side session pool.
type TaskRunner interface {
	Snippet(ctx context.Context, tableType, fragment string, dump []byte) ([]byte, error)
	Plot(ctx context.Context, tableType, fragment string, dump []byte, width, height int) ([]byte, error)
}

// Server answers remote task requests on a REP socket, one request at a
// time per socket; concurrency is bounded by the session pool behind the
// runner, not by the transport.
type Server struct {
	port     int
	registry string
	runner   TaskRunner
}

// NewServer builds a server publishing the runner under the registry name.
func NewServer(port int, registry string, runner TaskRunner) *Server {
	if registry == "" {
		registry = DefaultRegistry
	}
	return &Server{port: port, registry: registry, runner: runner}
}

// Serve binds and answers requests until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	sock, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		return errors.Wrap(err, "rpc: create socket")
	}
	defer sock.Close()
	// Short receive timeout so cancellation is noticed between requests.
	sock.SetRcvtimeo(500 * time.Millisecond)
	sock.SetLinger(0)

	endpoint := fmt.Sprintf("tcp://*:%d", s.port)
	if err := sock.Bind(endpoint); err != nil {
		return errors.Wrapf(err, "rpc: bind %s", endpoint)
	}
	logger.Info("Session server listening.", "endpoint", endpoint, "registry", s.registry)

	for {
		if ctx.Err() != nil {
			logger.Info("Session server stopping.")
			return nil
		}
		raw, err := sock.RecvBytes(0)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
				// Receive timed out; poll ctx again.
				continue
			}
			return errors.Wrap(err, "rpc: receive")
		}
		resp := s.handle(ctx, raw)
		rawResp, err := proto.Marshal(resp)
		if err != nil {
			return errors.Wrap(err, "rpc: marshal response")
		}
		if _, err := sock.SendBytes(rawResp, 0); err != nil {
			return errors.Wrap(err, "rpc: send response")
		}
	}
}

// handle decodes, validates, and dispatches one request. Faults are carried
// back in the response rather than tearing the serving loop down.
func (s *Server) handle(ctx context.Context, raw []byte) *matlabrpc.TaskResponse {
	logger := ctxlog.FromContext(ctx)

	req := &matlabrpc.TaskRequest{}
	if err := proto.Unmarshal(raw, req); err != nil {
		return &matlabrpc.TaskResponse{Error: "malformed request"}
	}
	if req.Registry != s.registry {
		return &matlabrpc.TaskResponse{
			Error: fmt.Sprintf("unknown registry %q, serving %q", req.Registry, s.registry),
		}
	}

	logger.Debug("Handling remote task.", "op", req.Op)
	switch req.Op {
	case matlabrpc.OpPing:
		return &matlabrpc.TaskResponse{}
	case matlabrpc.OpSnippet:
		dump, err := s.runner.Snippet(ctx, req.TableType, req.Snippet, req.Dump)
		if err != nil {
			return &matlabrpc.TaskResponse{Error: err.Error()}
		}
		return &matlabrpc.TaskResponse{Dump: dump}
	case matlabrpc.OpPlot:
		plot, err := s.runner.Plot(ctx, req.TableType, req.Snippet, req.Dump, int(req.Width), int(req.Height))
		if err != nil {
			return &matlabrpc.TaskResponse{Error: err.Error()}
		}
		return &matlabrpc.TaskResponse{Plot: plot}
	default:
		return &matlabrpc.TaskResponse{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
