package rpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/protocol"
)

// Server forwards Execute RPCs onto a local channel.Channel, the same
// one the in-process coordinator reads from. It is the remote-process
// half of the proxy transport: commands arriving over the socket are
// indistinguishable, once enqueued, from commands submitted by a
// same-process proxy.
type Server struct {
	ch      channel.Channel
	timeout time.Duration
}

// NewServer wraps ch. timeout bounds how long a Wait=true Execute call
// blocks for a reply before returning a ChannelTimeout-flavored error.
func NewServer(ch channel.Channel, timeout time.Duration) *Server {
	return &Server{ch: ch, timeout: timeout}
}

func (s *Server) Execute(ctx context.Context, env *Envelope) (*protocol.Reply, error) {
	if env.Command == nil {
		return nil, fmt.Errorf("rpc: empty command")
	}

	if !env.Wait {
		if _, err := s.ch.Send(ctx, env.Command); err != nil {
			return nil, err
		}
		return &protocol.Reply{Kind: protocol.ReplyOK}, nil
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reply, err := s.ch.SendAndWait(ctx, env.Command, timeout)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Listen binds a Unix domain socket at socketPath (replacing any stale
// socket left behind by a prior process) and returns a grpc.Server
// already registered with srv, plus the listener for the caller to
// Serve on. Splitting bind from serve lets callers log the bound path
// before blocking.
func Listen(socketPath string, srv *Server) (*grpc.Server, net.Listener, error) {
	if err := os.RemoveAll(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("rpc: remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: listen on %s: %w", socketPath, err)
	}

	// No TLS: the socket's filesystem permissions are the trust
	// boundary (only processes running as the same user that created
	// the container can reach it), so there is no separate identity to
	// authenticate the way a networked manager would need mTLS for.
	gs := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	gs.RegisterService(&ServiceDesc, srv)

	return gs, lis, nil
}
