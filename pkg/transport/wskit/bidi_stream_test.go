package wskit

import (
	"errors"
	"testing"
	"time"

	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamPair() (*MuxerBidiStream, *MuxerBidiStream) {
	var left, right *MuxerBidiStream
	left = NewMuxerBidiStream(func(p []byte) error {
		select {
		case right.RecvChan() <- p:
			return nil
		case <-right.Closed():
			return ErrStreamClosed
		}
	}, nil)
	right = NewMuxerBidiStream(func(p []byte) error {
		select {
		case left.RecvChan() <- p:
			return nil
		case <-left.Closed():
			return ErrStreamClosed
		}
	}, nil)
	return left, right
}

func TestEncodeDecodePlainMessage(t *testing.T) {
	// Arrange
	left, right := newStreamPair()

	// Act
	require.NoError(t, left.Encode(&api.Event{Kind: api.EventNext, Entry: &api.Entry{Topic: "metrics", Sequence: 42}}))

	// Assert
	event := &api.Event{}
	require.NoError(t, right.Decode(event))
	assert.Equal(t, api.EventNext, event.Kind)
	assert.Equal(t, uint64(42), event.Entry.Sequence)
}

func TestEncodeWrapsRoutedMessages(t *testing.T) {
	// Arrange
	left, right := newStreamPair()
	hostID := uuid.New()

	// Act
	require.NoError(t, left.Encode(&api.Subscribe{HostID: hostID, Topic: "metrics", MinSequence: 7}))

	// Assert
	envelope := &polymorphic.Envelope{}
	require.NoError(t, right.Decode(envelope))
	msg, ok := envelope.Content.(*api.Subscribe)
	require.True(t, ok)
	assert.Equal(t, hostID, msg.HostID)
	assert.Equal(t, "metrics", msg.Topic)
	assert.Equal(t, uint64(7), msg.MinSequence)
}

func TestCloseSendDeliversEndOfStream(t *testing.T) {
	left, right := newStreamPair()

	require.NoError(t, left.CloseSend(nil))

	var discard any
	err := right.Decode(&discard)
	assert.ErrorIs(t, err, right.EndOfStreamError())
}

func TestCloseSendDeliversTerminalError(t *testing.T) {
	left, right := newStreamPair()

	require.NoError(t, left.CloseSend(errors.New("boom")))

	var discard any
	err := right.Decode(&discard)
	require.Error(t, err)
	assert.False(t, errors.Is(err, right.EndOfStreamError()))
	assert.Contains(t, err.Error(), "boom")
}

func TestCloseSignalsPeer(t *testing.T) {
	// A plain Close(nil) doubles as the release signal: the peer sees end
	// of stream without any dedicated teardown handshake.
	left, right := newStreamPair()

	left.Close(nil)

	var discard any
	err := right.Decode(&discard)
	assert.ErrorIs(t, err, right.EndOfStreamError())
}

func TestCloseUnblocksLocalDecode(t *testing.T) {
	left, _ := newStreamPair()

	errs := make(chan error, 1)
	go func() {
		var discard any
		errs <- left.Decode(&discard)
	}()

	left.Close(nil)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("decode did not unblock")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	left, right := newStreamPair()

	left.Close(nil)
	left.Close(errors.New("late"))

	var discard any
	err := right.Decode(&discard)
	assert.ErrorIs(t, err, right.EndOfStreamError())
}

func TestEncodeAfterCloseFails(t *testing.T) {
	left, _ := newStreamPair()
	left.Close(nil)

	err := left.Encode(&api.Event{Kind: api.EventComplete})

	assert.ErrorIs(t, err, ErrStreamClosed)
}
