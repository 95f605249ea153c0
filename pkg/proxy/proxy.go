package proxy

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/metaspec"
	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/serializer"
	"github.com/cuemby/share/pkg/shareerr"
	"github.com/cuemby/share/pkg/sot"
)

// syntheticSetterMethod must match the coordinator's constant of the
// same name (pkg/coordinator/dispatch_call.go); duplicated here since
// importing the coordinator from the proxy would be backwards (the
// coordinator depends on nothing above pkg/protocol).
const syntheticSetterMethod = "__set__"

const defaultBarrierPoll = 5 * time.Millisecond

// TypeResolver looks up the concrete Go type an entry was assigned
// as, mirroring the coordinator's own entryTypes map but living on the
// client side so a Proxy can read a method's declared metadata without
// a round trip.
type TypeResolver func(name string) (reflect.Type, bool)

// Proxy is a lazy handle bound to one entry name and an attribute path
// rooted at it. It holds no cached value: every Call and Value
// evaluates against the live Source of Truth / coordinator.
type Proxy struct {
	ch         channel.Channel
	store      sot.Store
	serializer serializer.Serializer
	resolve    TypeResolver
	marks      *HighWaterMarks
	timeout    time.Duration

	name string
	path protocol.Path
}

// New returns the root proxy for name (path = nil).
func New(ch channel.Channel, store sot.Store, ser serializer.Serializer, resolve TypeResolver, marks *HighWaterMarks, timeout time.Duration, name string) *Proxy {
	return &Proxy{ch: ch, store: store, serializer: ser, resolve: resolve, marks: marks, timeout: timeout, name: name}
}

// Attr returns a new proxy one attribute step deeper.
func (p *Proxy) Attr(attr string) *Proxy {
	next := append(append(protocol.Path{}, p.path...), attr)
	return &Proxy{
		ch: p.ch, store: p.store, serializer: p.serializer, resolve: p.resolve,
		marks: p.marks, timeout: p.timeout, name: p.name, path: next,
	}
}

// Call issues a method call at this proxy's path (spec 4.4.3). Pass
// wantResult=false for a fire-and-forget call with no reply channel.
func (p *Proxy) Call(ctx context.Context, method string, wantResult bool, args ...any) (any, error) {
	if err := p.awaitBarrier(ctx); err != nil {
		return nil, err
	}

	writes, err := p.declaredWrites(method)
	if err != nil {
		return nil, err
	}

	encodedArgs, err := p.serializer.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("proxy: encode args for %s.%s: %w", p.name, method, err)
	}

	cmd := &protocol.Command{
		Tag:         protocol.TagCall,
		Name:        p.name,
		Path:        p.path,
		MethodName:  method,
		EncodedArgs: encodedArgs,
		Writes:      writes,
	}

	if !wantResult {
		if _, err := p.ch.Send(ctx, cmd); err != nil {
			return nil, translateChannelErr(err, p.name)
		}
		return nil, nil
	}

	reply, err := p.ch.SendAndWait(ctx, cmd, p.timeout)
	if err != nil {
		return nil, translateChannelErr(err, p.name)
	}
	return p.handleReply(reply, writes)
}

// Set performs the synthetic-setter write described in spec 4.4.4:
// calling Attr(attr)'s entry with an explicit writes = {path}.
func (p *Proxy) Set(ctx context.Context, attr string, value any) error {
	if err := p.awaitBarrier(ctx); err != nil {
		return err
	}

	target := p.Attr(attr)
	encodedArgs, err := p.serializer.Encode([]any{value})
	if err != nil {
		return fmt.Errorf("proxy: encode value for %s.%s: %w", p.name, attr, err)
	}

	cmd := &protocol.Command{
		Tag:         protocol.TagCall,
		Name:        p.name,
		Path:        target.path,
		MethodName:  syntheticSetterMethod,
		EncodedArgs: encodedArgs,
		Writes:      protocol.WriteSet{Paths: []protocol.Path{target.path}},
	}

	reply, err := p.ch.SendAndWait(ctx, cmd, p.timeout)
	if err != nil {
		return translateChannelErr(err, p.name)
	}
	_, err = p.handleReply(reply, cmd.Writes)
	return err
}

// Value materializes this proxy's current value (spec 4.4.2 step 3).
// A pure attribute path with no pending method call never mutates
// anything, so it is always safe to decode straight from the Source
// of Truth once the barrier for this process's own prior writes to
// this entry is satisfied - no coordinator round trip required.
func (p *Proxy) Value(ctx context.Context) (any, error) {
	if err := p.awaitBarrier(ctx); err != nil {
		return nil, err
	}

	typ, ok := p.resolve(p.name)
	if !ok {
		return nil, shareerr.Named(shareerr.ErrMissingEntry, p.name)
	}

	raw, _, err := p.store.Get(p.name)
	if err != nil {
		if err == sot.ErrAbsent {
			return nil, shareerr.Named(shareerr.ErrMissingEntry, p.name)
		}
		return nil, fmt.Errorf("proxy: get %s: %w", p.name, err)
	}

	root := reflect.New(typ)
	if err := p.serializer.Decode(raw, root.Interface()); err != nil {
		return nil, shareerr.Named(shareerr.ErrSharedStateCorrupt, p.name)
	}

	leaf, err := traverse(root, p.path)
	if err != nil {
		return nil, shareerr.Named(shareerr.ErrMissingEntry, p.name)
	}
	return leaf.Interface(), nil
}

// declaredWrites looks up method's metadata on the entry's registered
// type, constructing a zero-value instance purely to read its method
// set / Provider declaration (ShareMeta is a class-level contract, not
// instance data, so a zero value is always sufficient).
func (p *Proxy) declaredWrites(method string) (protocol.WriteSet, error) {
	if method == syntheticSetterMethod {
		return protocol.WriteSet{Paths: []protocol.Path{p.path}}, nil
	}

	typ, ok := p.resolve(p.name)
	if !ok {
		return protocol.WriteSet{}, shareerr.Named(shareerr.ErrMissingEntry, p.name)
	}
	zero := reflect.New(typ).Interface()
	return metaspec.MethodFor(zero, method).WriteSet(), nil
}

func (p *Proxy) handleReply(reply *protocol.Reply, writes protocol.WriteSet) (any, error) {
	// A write may have been persisted by the coordinator even when the
	// call raised (spec 4.5: "entry re-encoded with whatever state the
	// method mutated before raising"), so the barrier mark advances on
	// both OK and EXCEPTION replies.
	if (reply.Kind == protocol.ReplyOK || reply.Kind == protocol.ReplyException) && writes.AnyWrites() {
		p.marks.Observe(p.name, reply.Version)
	}

	switch reply.Kind {
	case protocol.ReplyOK:
		if len(reply.Payload) == 0 {
			return nil, nil
		}
		var result any
		if err := p.serializer.Decode(reply.Payload, &result); err != nil {
			return nil, fmt.Errorf("proxy: decode reply for %s: %w", p.name, err)
		}
		return result, nil
	case protocol.ReplyException:
		var exc struct{ Message string }
		_ = p.serializer.Decode(reply.Payload, &exc)
		return nil, fmt.Errorf("%s", exc.Message)
	case protocol.ReplyMarker:
		return nil, shareerr.FromMarker(reply.Marker, p.name)
	default:
		return nil, fmt.Errorf("proxy: unrecognized reply kind %q", reply.Kind)
	}
}

// awaitBarrier blocks until the Source of Truth reports a version for
// this entry at least as high as what this process has itself already
// produced (spec 4.4.5), or returns ChannelTimeout if that never
// happens within the proxy's timeout.
func (p *Proxy) awaitBarrier(ctx context.Context) error {
	target := p.marks.Get(p.name)
	if target == 0 {
		return nil
	}

	deadline := time.Now().Add(p.timeout)
	for {
		if p.store.VersionOf(p.name) >= target {
			return nil
		}
		if time.Now().After(deadline) {
			return shareerr.Named(shareerr.ErrChannelTimeout, p.name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultBarrierPoll):
		}
	}
}

func translateChannelErr(err error, name string) error {
	switch err {
	case channel.ErrChannelTimeout:
		return shareerr.Named(shareerr.ErrChannelTimeout, name)
	case channel.ErrCoordinatorUnavailable:
		return shareerr.Named(shareerr.ErrCoordinatorUnavailable, name)
	default:
		return err
	}
}

// traverse walks path from root (a pointer to the decoded entry),
// following exported struct fields one step at a time. Kept in sync
// with the coordinator's identical helper; both packages need it and
// neither may import the other.
func traverse(root reflect.Value, path protocol.Path) (reflect.Value, error) {
	v := root
	for _, step := range path {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("proxy: nil pointer traversing path at %q", step)
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("proxy: cannot traverse into non-struct at %q", step)
		}
		next := v.FieldByName(step)
		if !next.IsValid() {
			return reflect.Value{}, fmt.Errorf("proxy: no field %q", step)
		}
		v = next
	}
	return v, nil
}
