package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/share/pkg/protocol"
)

func TestSendAssignsIncreasingSequence(t *testing.T) {
	ch := NewInProcess(8)
	ctx := context.Background()

	seq1, err := ch.Send(ctx, &protocol.Command{Tag: protocol.TagSet, Name: "a"})
	require.NoError(t, err)
	seq2, err := ch.Send(ctx, &protocol.Command{Tag: protocol.TagSet, Name: "b"})
	require.NoError(t, err)

	assert.Less(t, seq1, seq2)
}

func TestReceiveInOrder(t *testing.T) {
	ch := NewInProcess(8)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := ch.Send(ctx, &protocol.Command{Tag: protocol.TagSet, Name: name})
		require.NoError(t, err)
	}

	var got []string
	for i := 0; i < 3; i++ {
		cmd, err := ch.Receive(ctx)
		require.NoError(t, err)
		got = append(got, cmd.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSendAndWaitReceivesReply(t *testing.T) {
	ch := NewInProcess(8)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cmd, err := ch.Receive(ctx)
		require.NoError(t, err)
		ch.Reply(cmd, &protocol.Reply{Kind: protocol.ReplyOK, Payload: []byte("ok")})
	}()

	reply, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagGet, Name: "x"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyOK, reply.Kind)
	assert.Equal(t, []byte("ok"), reply.Payload)
	<-done
}

func TestSendAndWaitTimesOutWithoutCancellingCommand(t *testing.T) {
	ch := NewInProcess(8)
	ctx := context.Background()

	_, err := ch.SendAndWait(ctx, &protocol.Command{Tag: protocol.TagGet, Name: "x"}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrChannelTimeout)

	// the command is still sitting in the queue, waiting for a slow coordinator.
	cmd, err := ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", cmd.Name)
}

func TestSendAfterCloseFailsExceptShutdown(t *testing.T) {
	ch := NewInProcess(8)
	ctx := context.Background()
	ch.Close()

	_, err := ch.Send(ctx, &protocol.Command{Tag: protocol.TagSet, Name: "x"})
	assert.ErrorIs(t, err, ErrCoordinatorUnavailable)

	_, err = ch.Send(ctx, &protocol.Command{Tag: protocol.TagShutdown})
	assert.NoError(t, err)
}
