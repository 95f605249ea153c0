package coordinator_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/coordinator"
	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/serializer"
	"github.com/cuemby/share/pkg/sot"
	"github.com/cuemby/share/pkg/typeregistry"
)

// counter is a sample shared object: a struct with a mutating method
// used to exercise CALL, and a Limit field used to exercise GET path
// traversal.
type counter struct {
	Value int
	Limit int
}

func (c *counter) Increment(delta int) error {
	if c.Value+delta > c.Limit {
		return fmt.Errorf("counter: increment would exceed limit %d", c.Limit)
	}
	c.Value += delta
	return nil
}

func newHarness(t *testing.T) (ch channel.Channel, store sot.Store, stop func()) {
	t.Helper()
	store = sot.New()
	ch = channel.NewInProcess(8)
	ser := serializer.NewJSON()
	co := coordinator.New(store, ch, ser)

	ctx, cancel := context.WithCancel(context.Background())
	go co.Run(ctx)

	return ch, store, func() {
		cancel()
		<-co.Done()
	}
}

func sendSet(t *testing.T, ch channel.Channel, name string, obj any) *protocol.Reply {
	t.Helper()
	ser := serializer.NewJSON()
	encoded, err := ser.Encode(obj)
	require.NoError(t, err)

	typ := reflect.TypeOf(obj)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	typeName := typeregistry.NameFor(typ)

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagSet,
		Name:        name,
		EncodedArgs: encoded,
		MethodName:  typeName,
	}, time.Second)
	require.NoError(t, err)
	return reply
}

func TestApplySetThenGetRoundTrips(t *testing.T) {
	ch, _, stop := newHarness(t)
	defer stop()

	setReply := sendSet(t, ch, "c1", &counter{Value: 1, Limit: 10})
	assert.Equal(t, protocol.ReplyOK, setReply.Kind)
	assert.Equal(t, uint64(1), setReply.Version)

	getReply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagGet,
		Name: "c1",
		Path: protocol.Path{"Limit"},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, getReply.Kind)
	assert.Equal(t, "10", string(getReply.Payload))
}

func TestApplyCallMutatesAndPersists(t *testing.T) {
	ch, store, stop := newHarness(t)
	defer stop()

	sendSet(t, ch, "c1", &counter{Value: 1, Limit: 10})

	args, err := serializer.NewJSON().Encode([]any{4})
	require.NoError(t, err)

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagCall,
		Name:        "c1",
		MethodName:  "Increment",
		EncodedArgs: args,
		Writes:      protocol.WriteSet{Whole: true},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply.Kind)

	raw, _, err := store.Get("c1")
	require.NoError(t, err)
	var got counter
	require.NoError(t, serializer.NewJSON().Decode(raw, &got))
	assert.Equal(t, 5, got.Value)
}

func TestApplyCallErrorReturnBecomesException(t *testing.T) {
	ch, store, stop := newHarness(t)
	defer stop()

	sendSet(t, ch, "c1", &counter{Value: 9, Limit: 10})

	args, err := serializer.NewJSON().Encode([]any{5})
	require.NoError(t, err)

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagCall,
		Name:        "c1",
		MethodName:  "Increment",
		EncodedArgs: args,
		Writes:      protocol.WriteSet{Whole: true},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyException, reply.Kind)

	// State must be unchanged: the method returned its error before
	// mutating anything, and Share never rolls back a raised exception,
	// so the entry it re-encodes and persists is the original one.
	raw, _, err := store.Get("c1")
	require.NoError(t, err)
	var got counter
	require.NoError(t, serializer.NewJSON().Decode(raw, &got))
	assert.Equal(t, 9, got.Value)
}

func TestApplyCallUnknownEntryReturnsMissingEntry(t *testing.T) {
	ch, _, stop := newHarness(t)
	defer stop()

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:        protocol.TagCall,
		Name:       "nope",
		MethodName: "Increment",
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyMarker, reply.Kind)
	assert.Equal(t, protocol.MarkerMissingEntry, reply.Marker)
}

func TestApplyDeleteThenGetIsMissingEntry(t *testing.T) {
	ch, _, stop := newHarness(t)
	defer stop()

	sendSet(t, ch, "c1", &counter{Value: 1, Limit: 10})

	delReply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagDelete,
		Name: "c1",
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, delReply.Kind)

	getReply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:  protocol.TagGet,
		Name: "c1",
		Path: protocol.Path{"Value"},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyMarker, getReply.Kind)
	assert.Equal(t, protocol.MarkerMissingEntry, getReply.Marker)
}

func TestApplyClearRemovesEverything(t *testing.T) {
	ch, store, stop := newHarness(t)
	defer stop()

	sendSet(t, ch, "c1", &counter{Value: 1, Limit: 10})
	sendSet(t, ch, "c2", &counter{Value: 2, Limit: 10})

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag: protocol.TagClear,
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply.Kind)
	assert.Empty(t, store.SnapshotNames())
}

type dbHandle struct {
	DSN   string
	Ready bool
}

type withConn struct {
	Label string
	Conn  serializer.Slot // holds a Reconnector placeholder until RECONNECT_ALL resolves it
}

func TestApplyReconnectAllResolvesPlaceholders(t *testing.T) {
	serializer.RegisterResolver("test.dbHandle", func(ref string, auth map[string]string) (any, error) {
		return &dbHandle{DSN: ref, Ready: true}, nil
	})

	ch, store, stop := newHarness(t)
	defer stop()

	placeholder := &withConn{
		Label: "primary",
		Conn:  serializer.Slot{Reconnector: &serializer.Reconnector{Kind: "test.dbHandle", Ref: "postgres://localhost/app"}},
	}
	sendSet(t, ch, "res1", placeholder)

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag:         protocol.TagReconnectAll,
		EncodedArgs: []byte(`{"user":"svc"}`),
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply.Kind)

	var result protocol.ReconnectResult
	require.NoError(t, serializer.NewJSON().Decode(reply.Payload, &result))
	assert.Equal(t, []string{"res1"}, result.Updated)

	raw, _, err := store.Get("res1")
	require.NoError(t, err)
	var got withConn
	require.NoError(t, serializer.NewJSON().Decode(raw, &got))
	assert.Equal(t, "primary", got.Label)
}

func TestShutdownStopsTheLoop(t *testing.T) {
	ch, _, stop := newHarness(t)
	defer stop()

	reply, err := ch.SendAndWait(context.Background(), &protocol.Command{
		Tag: protocol.TagShutdown,
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply.Kind)
}
