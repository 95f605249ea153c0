package share

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/coordinator"
	"github.com/cuemby/share/pkg/log"
	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/proxy"
	"github.com/cuemby/share/pkg/serializer"
	"github.com/cuemby/share/pkg/shareerr"
	"github.com/cuemby/share/pkg/sot"
	"github.com/cuemby/share/pkg/typeregistry"
)

// DefaultStopTimeout matches the host language default of stop(timeout=5.0).
const DefaultStopTimeout = 5 * time.Second

// DefaultSendTimeout bounds every synchronous command this container
// issues against its own coordinator.
const DefaultSendTimeout = 5 * time.Second

// DefaultChannelCapacity is the command channel's buffered capacity.
const DefaultChannelCapacity = 64

// Config customizes a Share container. The zero value is usable:
// every field falls back to its Default constant.
type Config struct {
	ChannelCapacity int
	SendTimeout     time.Duration
	Serializer      serializer.Serializer
}

func (c Config) withDefaults() Config {
	if c.ChannelCapacity == 0 {
		c.ChannelCapacity = DefaultChannelCapacity
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.Serializer == nil {
		c.Serializer = serializer.NewJSON()
	}
	return c
}

// Share is the user-visible container.
type Share struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.RWMutex
	store       sot.Store
	ch          channel.Channel
	coordinator *coordinator.Coordinator
	marks       *proxy.HighWaterMarks
	localTypes  map[string]reflect.Type
	cancelRun   context.CancelFunc
}

// New constructs a container. Call Start to spawn its coordinator.
func New(cfg Config) *Share {
	return &Share{
		cfg:        cfg.withDefaults(),
		logger:     log.WithComponent("share"),
		localTypes: make(map[string]reflect.Type),
	}
}

// Start spawns a fresh coordinator over a fresh, empty Source of Truth
// if one is not already running. Calling Start on an already-running
// container is a no-op.
func (s *Share) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coordinator != nil && s.coordinator.Status() == coordinator.StatusRunning {
		return nil
	}

	s.store = sot.New()
	s.ch = channel.NewInProcess(s.cfg.ChannelCapacity)
	s.marks = proxy.NewHighWaterMarks()
	s.localTypes = make(map[string]reflect.Type)
	s.coordinator = coordinator.New(s.store, s.ch, s.cfg.Serializer)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	go s.coordinator.Run(ctx)

	return nil
}

// Stop sends SHUTDOWN and waits up to timeout for the coordinator to
// exit, reporting whether it exited in time (spec 4.4.8). Calling Stop
// when already stopped returns true immediately.
func (s *Share) Stop(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	co := s.coordinator
	ch := s.ch
	cancel := s.cancelRun
	s.mu.Unlock()

	if co == nil || co.Status() != coordinator.StatusRunning {
		return true, nil
	}

	ctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()
	_, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagShutdown}, timeout)
	if err != nil && err != channel.ErrChannelTimeout {
		return false, err
	}

	select {
	case <-co.Done():
		ch.Close()
		return true, nil
	case <-time.After(timeout):
		if cancel != nil {
			cancel()
		}
		return false, nil
	}
}

// Exit is an alias of Stop, matching spec 6.1's `exit`.
func (s *Share) Exit(timeout time.Duration) (bool, error) { return s.Stop(timeout) }

// Clear sends CLEAR synchronously.
func (s *Share) Clear() error {
	s.mu.Lock()
	ch := s.ch
	s.localTypes = make(map[string]reflect.Type)
	s.mu.Unlock()

	if ch == nil {
		return shareerr.Named(shareerr.ErrCoordinatorUnavailable, "")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	reply, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagClear}, s.cfg.SendTimeout)
	if err != nil {
		return translateErr(err, "")
	}
	if reply.Kind == protocol.ReplyMarker {
		return shareerr.FromMarker(reply.Marker, "")
	}
	return nil
}

// ReconnectAll sends RECONNECT_ALL with the given auth payload and
// returns a handle for every entry whose live resource was resolved
// (spec 4.4.8, 4.6). The returned proxies observe the live object
// immediately: RECONNECT_ALL already advanced that entry's version
// globally, so no barrier wait blocks the first read.
func (s *Share) ReconnectAll(auth map[string]string) (map[string]*proxy.Proxy, error) {
	s.mu.RLock()
	ch := s.ch
	s.mu.RUnlock()
	if ch == nil {
		return nil, shareerr.Named(shareerr.ErrCoordinatorUnavailable, "")
	}

	encoded, err := s.cfg.Serializer.Encode(auth)
	if err != nil {
		return nil, fmt.Errorf("share: encode reconnect auth: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	reply, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagReconnectAll, EncodedArgs: encoded}, s.cfg.SendTimeout)
	if err != nil {
		return nil, translateErr(err, "")
	}
	if reply.Kind == protocol.ReplyMarker {
		return nil, shareerr.FromMarker(reply.Marker, "")
	}

	var result protocol.ReconnectResult
	if err := s.cfg.Serializer.Decode(reply.Payload, &result); err != nil {
		return nil, fmt.Errorf("share: decode reconnect result: %w", err)
	}

	out := make(map[string]*proxy.Proxy, len(result.Updated))
	for _, name := range result.Updated {
		out[name] = s.Object(name)
	}
	return out, nil
}

// IsRunning reports whether the coordinator is currently running.
func (s *Share) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coordinator != nil && s.coordinator.Status() == coordinator.StatusRunning
}

// HasError reports whether the coordinator has transitioned to errored.
func (s *Share) HasError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coordinator != nil && s.coordinator.Status() == coordinator.StatusErrored
}

// Set assigns obj under name (spec 4.4.1): rejects reserved names and
// non-shareable types at the call site, encodes obj, and waits for the
// coordinator to confirm the write before returning.
func (s *Share) Set(name string, obj any) error {
	if strings.HasPrefix(name, "_") {
		return shareerr.Named(shareerr.ErrInvalidShareName, name)
	}

	typ := reflect.TypeOf(obj)
	if typ == nil {
		return fmt.Errorf("share: cannot assign a nil value to %q", name)
	}
	if !s.cfg.Serializer.Shareable(typ) {
		return shareerr.Named(shareerr.ErrUnsupportedShareType, typ.String())
	}

	encoded, err := s.cfg.Serializer.Encode(obj)
	if err != nil {
		return fmt.Errorf("share: encode %q: %w", name, err)
	}

	s.mu.RLock()
	ch := s.ch
	s.mu.RUnlock()
	if ch == nil {
		return shareerr.Named(shareerr.ErrCoordinatorUnavailable, name)
	}

	registeredTyp := typ
	if registeredTyp.Kind() == reflect.Ptr {
		registeredTyp = registeredTyp.Elem()
	}
	typeName := typeregistry.NameFor(registeredTyp)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	reply, err := ch.SendAndWait(ctx, &protocol.Command{
		Tag:         protocol.TagSet,
		Name:        name,
		EncodedArgs: encoded,
		MethodName:  typeName,
	}, s.cfg.SendTimeout)
	if err != nil {
		return translateErr(err, name)
	}
	if reply.Kind == protocol.ReplyMarker {
		return shareerr.FromMarker(reply.Marker, name)
	}

	s.mu.Lock()
	s.localTypes[name] = registeredTyp
	s.mu.Unlock()
	s.marks.Observe(name, reply.Version)

	return nil
}

// Get reads name (spec 4.4.2): primitive-typed entries decode directly
// from the Source of Truth with no coordinator round trip and are
// returned as their concrete Go value; everything else is returned as
// a *proxy.Proxy for the caller to traverse, call, or materialize.
func (s *Share) Get(name string) (any, error) {
	s.mu.RLock()
	typ, ok := s.localTypes[name]
	store := s.store
	s.mu.RUnlock()

	if !ok {
		return nil, shareerr.Named(shareerr.ErrMissingEntry, name)
	}

	if !isPrimitive(typ) {
		return s.Object(name), nil
	}

	raw, _, err := store.Get(name)
	if err != nil {
		if err == sot.ErrAbsent {
			return nil, shareerr.Named(shareerr.ErrMissingEntry, name)
		}
		return nil, fmt.Errorf("share: get %q: %w", name, err)
	}

	val := reflect.New(typ)
	if err := s.cfg.Serializer.Decode(raw, val.Interface()); err != nil {
		return nil, shareerr.Named(shareerr.ErrSharedStateCorrupt, name)
	}
	return val.Elem().Interface(), nil
}

// Object always returns a proxy for name, bypassing the primitive fast
// path - useful when the caller wants explicit Call/Set/Value control.
func (s *Share) Object(name string) *proxy.Proxy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return proxy.New(s.ch, s.store, s.cfg.Serializer, s.resolveType, s.marks, s.cfg.SendTimeout, name)
}

// Delete removes name.
func (s *Share) Delete(name string) error {
	s.mu.Lock()
	ch := s.ch
	delete(s.localTypes, name)
	s.mu.Unlock()

	if ch == nil {
		return shareerr.Named(shareerr.ErrCoordinatorUnavailable, name)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	reply, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagDelete, Name: name}, s.cfg.SendTimeout)
	if err != nil {
		return translateErr(err, name)
	}
	if reply.Kind == protocol.ReplyMarker {
		return shareerr.FromMarker(reply.Marker, name)
	}
	return nil
}

func (s *Share) resolveType(name string) (reflect.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.localTypes[name]
	return t, ok
}

func translateErr(err error, name string) error {
	switch err {
	case channel.ErrChannelTimeout:
		return shareerr.Named(shareerr.ErrChannelTimeout, name)
	case channel.ErrCoordinatorUnavailable:
		return shareerr.Named(shareerr.ErrCoordinatorUnavailable, name)
	default:
		return err
	}
}

// isPrimitive decides which values fast-path straight to the Source
// of Truth instead of returning a proxy: booleans, integers, floats,
// strings, byte strings, and shallow slices of these. Everything else
// - structs, maps, pointers to structs - gets a proxy.
func isPrimitive(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	case reflect.Slice:
		return isPrimitive(typ.Elem())
	default:
		return false
	}
}
