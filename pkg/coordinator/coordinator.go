package coordinator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/log"
	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/serializer"
	"github.com/cuemby/share/pkg/sot"
	"github.com/cuemby/share/pkg/typeregistry"
)

// Status mirrors the container's lifecycle as observed from inside
// the coordinator.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusErrored Status = "errored"
)

// Coordinator is the single writer of a Share container's Source of
// Truth. One Coordinator is created per container and runs its main
// loop on a dedicated goroutine until it sees SHUTDOWN or its context
// is cancelled.
type Coordinator struct {
	store      sot.Store
	ch         channel.Channel
	serializer serializer.Serializer
	logger     zerolog.Logger

	status atomic.Value // Status

	mu         sync.RWMutex
	entryTypes map[string]reflect.Type // name -> concrete Go type, for CALL/GET decode
	lastErr    error

	doneCh chan struct{}
}

// New constructs a Coordinator over the given Source of Truth, command
// channel and serializer. It does not start the main loop; call Run.
func New(store sot.Store, ch channel.Channel, ser serializer.Serializer) *Coordinator {
	c := &Coordinator{
		store:      store,
		ch:         ch,
		serializer: ser,
		logger:     log.WithComponent("coordinator"),
		entryTypes: make(map[string]reflect.Type),
		doneCh:     make(chan struct{}),
	}
	c.status.Store(StatusStopped)
	return c
}

// Status returns the coordinator's current lifecycle status.
func (c *Coordinator) Status() Status {
	return c.status.Load().(Status)
}

// Err returns the error that moved the coordinator to StatusErrored,
// if any.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Done is closed once the main loop has exited, cleanly or otherwise.
func (c *Coordinator) Done() <-chan struct{} {
	return c.doneCh
}

// Run is the coordinator's boot sequence and main loop: attach (the
// store and channel are already wired by New), mark running, then
// consume commands until SHUTDOWN or ctx cancellation.
func (c *Coordinator) Run(ctx context.Context) {
	c.status.Store(StatusRunning)
	c.logger.Info().Msg("coordinator started")
	defer close(c.doneCh)

	for {
		cmd, err := c.ch.Receive(ctx)
		if err != nil {
			c.setErrored(fmt.Errorf("coordinator: channel receive: %w", err))
			return
		}

		if cmd.Tag == protocol.TagShutdown {
			c.status.Store(StatusStopped)
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK})
			c.logger.Info().Msg("coordinator stopped")
			return
		}

		c.apply(cmd)
	}
}

func (c *Coordinator) setErrored(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.status.Store(StatusErrored)
	c.logger.Error().Err(err).Msg("coordinator errored")
}

// apply interprets one command. It never panics out of the main loop:
// any failure that is not a user-method error is captured, reported
// via CoordinatorError where a reply is expected, and the loop
// continues.
func (c *Coordinator) apply(cmd *protocol.Command) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("tag", string(cmd.Tag)).Msg("recovered from panic applying command")
			c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		}
	}()

	switch cmd.Tag {
	case protocol.TagSet:
		c.applySet(cmd)
	case protocol.TagDelete:
		c.applyDelete(cmd)
	case protocol.TagClear:
		c.applyClear(cmd)
	case protocol.TagCall:
		c.applyCall(cmd)
	case protocol.TagGet:
		c.applyGet(cmd)
	case protocol.TagReconnectAll:
		c.applyReconnectAll(cmd)
	default:
		c.logger.Warn().Str("tag", string(cmd.Tag)).Msg("unknown command tag")
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
	}
}

func (c *Coordinator) applySet(cmd *protocol.Command) {
	version, err := c.store.Put(cmd.Name, cmd.EncodedArgs)
	if err != nil {
		c.logger.Error().Err(err).Str("name", cmd.Name).Msg("set failed")
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		return
	}

	if cmd.MethodName != "" {
		// MethodName carries the registered type name for the assigned
		// value; see proxy assignment (Share.Set).
		if typ, ok := typeregistry.Lookup(cmd.MethodName); ok {
			c.mu.Lock()
			c.entryTypes[cmd.Name] = typ
			c.mu.Unlock()
		}
	}

	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK, Version: version})
}

func (c *Coordinator) applyDelete(cmd *protocol.Command) {
	if err := c.store.Delete(cmd.Name); err != nil {
		c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyMarker, Marker: protocol.MarkerCoordinatorError})
		return
	}
	c.mu.Lock()
	delete(c.entryTypes, cmd.Name)
	c.mu.Unlock()
	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK})
}

func (c *Coordinator) applyClear(cmd *protocol.Command) {
	c.store.Clear()
	c.mu.Lock()
	c.entryTypes = make(map[string]reflect.Type)
	c.mu.Unlock()
	c.ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK})
}

func (c *Coordinator) entryType(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entryTypes[name]
	return t, ok
}
