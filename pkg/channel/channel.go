package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/share/pkg/protocol"
)

// ErrCoordinatorUnavailable is returned by Send/SendAndWait once the
// coordinator has exited and a non-shutdown command is submitted.
var ErrCoordinatorUnavailable = fmt.Errorf("channel: coordinator unavailable")

// ErrChannelTimeout is returned by SendAndWait when no reply arrives
// within the deadline. The command may still execute later; it is
// never cancelled.
var ErrChannelTimeout = fmt.Errorf("channel: timed out waiting for reply")

// Channel is the command-channel contract consumed by proxies (Send,
// SendAndWait) and by the coordinator (Receive, Reply).
type Channel interface {
	// Send enqueues cmd and returns its assigned sequence number.
	// Blocks only if the channel is at capacity.
	Send(ctx context.Context, cmd *protocol.Command) (uint64, error)

	// SendAndWait enqueues cmd and blocks for its reply or until
	// timeout elapses, returning ErrChannelTimeout without cancelling
	// the command on the coordinator side.
	SendAndWait(ctx context.Context, cmd *protocol.Command, timeout time.Duration) (*protocol.Reply, error)

	// Receive is coordinator-only: blocks until a command is
	// available or ctx is cancelled.
	Receive(ctx context.Context) (*protocol.Command, error)

	// Reply is coordinator-only: posts result back to the reply
	// channel identified by cmd.ReplyID. A no-op if cmd carries no
	// ReplyID (it was sent asynchronously).
	Reply(cmd *protocol.Command, result *protocol.Reply)

	// Close marks the channel as having no coordinator attached;
	// subsequent Sends of non-shutdown commands fail.
	Close()
}

// InProcess is the default Channel: a buffered Go channel of commands
// plus a map of per-request reply channels, the same shape as the
// teacher's events.Broker (a buffered channel feeding a single
// dispatch loop) generalized to request/reply instead of pure
// broadcast.
type InProcess struct {
	commands chan *protocol.Command

	mu      sync.Mutex
	replies map[string]chan *protocol.Reply

	seq    uint64
	closed atomic.Bool
}

// NewInProcess returns a Channel with the given buffered capacity.
// Capacity zero means unbuffered (Send blocks until the coordinator's
// Receive picks the command up).
func NewInProcess(capacity int) *InProcess {
	return &InProcess{
		commands: make(chan *protocol.Command, capacity),
		replies:  make(map[string]chan *protocol.Reply),
	}
}

func (c *InProcess) Send(ctx context.Context, cmd *protocol.Command) (uint64, error) {
	if c.closed.Load() && cmd.Tag != protocol.TagShutdown {
		return 0, ErrCoordinatorUnavailable
	}

	seq := atomic.AddUint64(&c.seq, 1)
	cmd.Sequence = seq

	select {
	case c.commands <- cmd:
		return seq, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *InProcess) SendAndWait(ctx context.Context, cmd *protocol.Command, timeout time.Duration) (*protocol.Reply, error) {
	if cmd.ReplyID == "" {
		cmd.ReplyID = uuid.NewString()
	}

	replyCh := make(chan *protocol.Reply, 1)
	c.mu.Lock()
	c.replies[cmd.ReplyID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replies, cmd.ReplyID)
		c.mu.Unlock()
	}()

	if _, err := c.Send(ctx, cmd); err != nil {
		return nil, err
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timeoutCh:
		return nil, ErrChannelTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *InProcess) Receive(ctx context.Context) (*protocol.Command, error) {
	select {
	case cmd := <-c.commands:
		return cmd, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *InProcess) Reply(cmd *protocol.Command, result *protocol.Reply) {
	if cmd.ReplyID == "" {
		return
	}
	c.mu.Lock()
	replyCh, ok := c.replies[cmd.ReplyID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case replyCh <- result:
	default:
		// requester already gave up (timeout); drop the reply rather
		// than block the coordinator loop.
	}
}

func (c *InProcess) Close() {
	c.closed.Store(true)
}
