package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/protocol"
)

// RemoteChannel implements channel.Channel over a gRPC connection to a
// Unix domain socket, so a Proxy in one process can address an entry
// owned by the coordinator running in another. Receive and Reply are
// coordinator-only on channel.Channel; RemoteChannel never serves
// them, since a remote caller is always a client, never the
// coordinator itself.
type RemoteChannel struct {
	conn *grpc.ClientConn
}

// Dial connects to a coordinator's Unix domain socket at socketPath.
func Dial(socketPath string) (*RemoteChannel, error) {
	conn, err := grpc.NewClient(
		"unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", socketPath, err)
	}
	return &RemoteChannel{conn: conn}, nil
}

// Send returns cmd.Sequence as the caller left it: the sequence number
// the coordinator's channel assigns is not sent back over the socket.
func (r *RemoteChannel) Send(ctx context.Context, cmd *protocol.Command) (uint64, error) {
	_, err := r.invoke(ctx, &Envelope{Command: cmd, Wait: false})
	return cmd.Sequence, err
}

func (r *RemoteChannel) SendAndWait(ctx context.Context, cmd *protocol.Command, timeout time.Duration) (*protocol.Reply, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	reply, err := r.invoke(callCtx, &Envelope{Command: cmd, Wait: true})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, channel.ErrChannelTimeout
		}
		return nil, err
	}
	return reply, nil
}

// Receive is never called on a RemoteChannel: only the process that
// owns the coordinator reads commands off the channel that feeds it.
func (r *RemoteChannel) Receive(ctx context.Context) (*protocol.Command, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Reply is never called on a RemoteChannel for the same reason as
// Receive; it is a no-op rather than a panic so a RemoteChannel can
// still satisfy channel.Channel in code that only ever calls it as a
// client.
func (r *RemoteChannel) Reply(cmd *protocol.Command, result *protocol.Reply) {}

func (r *RemoteChannel) Close() {
	_ = r.conn.Close()
}

func (r *RemoteChannel) invoke(ctx context.Context, env *Envelope) (*protocol.Reply, error) {
	reply := new(protocol.Reply)
	if err := r.conn.Invoke(ctx, fullMethod(), env, reply); err != nil {
		return nil, fmt.Errorf("rpc: execute: %w", err)
	}
	return reply, nil
}
