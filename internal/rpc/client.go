// Package rpc implements the remote session transport: a typed stub on the
// client side and a serving loop on the session-server side, speaking
// protobuf request/response pairs over ZeroMQ REQ/REP sockets.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/rpc/matlabrpc"
)

// DefaultTimeout bounds one remote task round trip. Snippet execution time
// is included, so this is deliberately generous.
const DefaultTimeout = 5 * time.Minute

// Client is the typed stub to a remote session server. It is safe for
// concurrent use but serializes calls, matching the one-task-at-a-time
// session client contract.
type Client struct {
	mu   sync.Mutex
	sock *zmq.Socket
	addr Addr
}

// Dial resolves a //host:port/registryName reference to a connected stub.
func Dial(address string) (*Client, error) {
	addr, err := ParseAddr(address)
	if err != nil {
		return nil, err
	}
	sock, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: create socket")
	}
	sock.SetSndtimeo(DefaultTimeout)
	sock.SetRcvtimeo(DefaultTimeout)
	sock.SetLinger(0)
	if err := sock.Connect(addr.Endpoint()); err != nil {
		sock.Close()
		return nil, errors.Wrapf(err, "rpc: connect %s", addr.Endpoint())
	}
	return &Client{sock: sock, addr: addr}, nil
}

// Close releases the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.Close()
}

func (c *Client) call(ctx context.Context, req *matlabrpc.TaskRequest) (*matlabrpc.TaskResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Registry = c.addr.Registry
	raw, err := proto.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: marshal request")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.sock.SendBytes(raw, 0); err != nil {
		return nil, errors.Wrapf(err, "rpc: send to %s", c.addr)
	}
	rawResp, err := c.sock.RecvBytes(0)
	if err != nil {
		return nil, errors.Wrapf(err, "rpc: receive from %s", c.addr)
	}

	resp := &matlabrpc.TaskResponse{}
	if err := proto.Unmarshal(rawResp, resp); err != nil {
		return nil, errors.Wrap(err, "rpc: unmarshal response")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("rpc: remote fault: %s", resp.Error)
	}
	return resp, nil
}

// Ping verifies the server is reachable under the expected registry name.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, &matlabrpc.TaskRequest{Op: matlabrpc.OpPing})
	return err
}

// Snippet runs a snippet task remotely. It implements matlab.Transport.
func (c *Client) Snippet(ctx context.Context, tableType, fragment string, dump []byte) ([]byte, error) {
	resp, err := c.call(ctx, &matlabrpc.TaskRequest{
		Op:        matlabrpc.OpSnippet,
		TableType: tableType,
		Snippet:   fragment,
		Dump:      dump,
	})
	if err != nil {
		return nil, err
	}
	return resp.Dump, nil
}

// Plot runs a plot task remotely. It implements matlab.Transport.
func (c *Client) Plot(ctx context.Context, tableType, fragment string, dump []byte, width, height int) ([]byte, error) {
	resp, err := c.call(ctx, &matlabrpc.TaskRequest{
		Op:        matlabrpc.OpPlot,
		TableType: tableType,
		Snippet:   fragment,
		Dump:      dump,
		Width:     int32(width),
		Height:    int32(height),
	})
	if err != nil {
		return nil, err
	}
	return resp.Plot, nil
}
