package host_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/obskit/pkg/host"
	"github.com/fgrzl/obskit/pkg/storage/pebble"
	"github.com/fgrzl/obskit/pkg/transport/wskit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) host.Host {
	t.Helper()
	factory, err := pebble.NewJournalFactory(&pebble.PebbleJournalOptions{Path: t.TempDir()})
	require.NoError(t, err)

	manager := host.NewManager(nil, factory)
	t.Cleanup(manager.Close)

	h, err := manager.GetOrCreate(t.Context(), uuid.New())
	require.NoError(t, err)
	return h
}

// newStreamPair wires two muxer streams back to back so the host sees the
// same frames it would over a websocket channel.
func newStreamPair() (*wskit.MuxerBidiStream, *wskit.MuxerBidiStream) {
	var client, server *wskit.MuxerBidiStream
	client = wskit.NewMuxerBidiStream(func(p []byte) error {
		select {
		case server.RecvChan() <- p:
			return nil
		case <-server.Closed():
			return wskit.ErrStreamClosed
		}
	}, nil)
	server = wskit.NewMuxerBidiStream(func(p []byte) error {
		select {
		case client.RecvChan() <- p:
			return nil
		case <-client.Closed():
			return wskit.ErrStreamClosed
		}
	}, nil)
	return client, server
}

func publish(t *testing.T, h host.Host, topic string, first, count int) {
	t.Helper()
	client, server := newStreamPair()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(t.Context(), &api.Publish{Topic: topic}, server)
	}()

	for i := 0; i < count; i++ {
		require.NoError(t, client.Encode(&api.Record{
			Sequence: uint64(first + i),
			Payload:  []byte(fmt.Sprintf("payload %d", first+i)),
		}))
	}
	require.NoError(t, client.CloseSend(nil))

	statuses, err := enumerators.ToSlice(api.NewStreamEnumerator[*api.TopicStatus](client))
	require.NoError(t, err)
	require.NotEmpty(t, statuses)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish handler did not finish")
	}
}

func TestPublishAcknowledgesChunks(t *testing.T) {
	// Arrange
	h := newTestHost(t)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Publish{Topic: "metrics"}, server)

	// Act
	for i := 1; i <= 3; i++ {
		require.NoError(t, client.Encode(&api.Record{Sequence: uint64(i), Payload: []byte("v")}))
	}
	require.NoError(t, client.CloseSend(nil))
	statuses, err := enumerators.ToSlice(api.NewStreamEnumerator[*api.TopicStatus](client))

	// Assert
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "metrics", statuses[0].Topic)
	assert.Equal(t, uint64(1), statuses[0].FirstSequence)
	assert.Equal(t, uint64(3), statuses[0].LastSequence)
}

func TestSubscribeReplaysJournal(t *testing.T) {
	// Arrange
	h := newTestHost(t)
	publish(t, h, "metrics", 1, 5)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Subscribe{Topic: "metrics"}, server)

	// Act
	events := decodeEvents(t, client, 5)
	client.Close(nil)

	// Assert
	for i, event := range events {
		require.Equal(t, api.EventNext, event.Kind)
		require.NotNil(t, event.Entry)
		assert.Equal(t, uint64(i+1), event.Entry.Sequence)
	}
}

func TestSubscribeFromMinSequence(t *testing.T) {
	h := newTestHost(t)
	publish(t, h, "metrics", 1, 10)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Subscribe{Topic: "metrics", MinSequence: 7}, server)

	events := decodeEvents(t, client, 3)
	client.Close(nil)

	assert.Equal(t, uint64(8), events[0].Entry.Sequence)
	assert.Equal(t, uint64(10), events[2].Entry.Sequence)
}

func TestSubscribeForwardsLiveEntries(t *testing.T) {
	// Arrange
	h := newTestHost(t)
	publish(t, h, "metrics", 1, 2)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Subscribe{Topic: "metrics"}, server)

	replayed := decodeEvents(t, client, 2)
	require.Equal(t, uint64(2), replayed[1].Entry.Sequence)

	// Act
	publish(t, h, "metrics", 3, 2)

	// Assert
	live := decodeEvents(t, client, 2)
	assert.Equal(t, uint64(3), live[0].Entry.Sequence)
	assert.Equal(t, uint64(4), live[1].Entry.Sequence)
	client.Close(nil)
}

func TestSubscribeRequiresTopic(t *testing.T) {
	h := newTestHost(t)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Subscribe{}, server)

	event := &api.Event{}
	err := client.Decode(event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic is required")
}

func TestSubscribeStopsOnClientRelease(t *testing.T) {
	// Arrange
	h := newTestHost(t)
	client, server := newStreamPair()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(t.Context(), &api.Subscribe{Topic: "metrics"}, server)
	}()

	// Act
	client.Close(nil)

	// Assert
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not observe release")
	}
}

func TestReplayStreamsRange(t *testing.T) {
	h := newTestHost(t)
	publish(t, h, "metrics", 1, 10)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.Replay{Topic: "metrics", MinSequence: 2, MaxSequence: 5}, server)

	entries, err := enumerators.ToSlice(api.NewStreamEnumerator[*api.Entry](client))

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(3), entries[0].Sequence)
	assert.Equal(t, uint64(5), entries[2].Sequence)
}

func TestGetTopicsListsInventory(t *testing.T) {
	h := newTestHost(t)
	publish(t, h, "alpha", 1, 1)
	publish(t, h, "beta", 1, 1)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.GetTopics{}, server)

	topics, err := enumerators.ToSlice(api.NewStreamEnumerator[string](client))

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, topics)
}

func TestGetStatusCountsTopics(t *testing.T) {
	h := newTestHost(t)
	publish(t, h, "alpha", 1, 1)
	publish(t, h, "beta", 1, 1)
	client, server := newStreamPair()
	go h.Handle(t.Context(), &api.GetStatus{}, server)

	status := &api.HostStatus{}
	require.NoError(t, client.Decode(status))

	assert.Equal(t, 2, status.TopicCount)
}

func TestHandleRejectsUnknownMessage(t *testing.T) {
	h := newTestHost(t)
	client, server := newStreamPair()

	h.Handle(t.Context(), &unroutedMsg{}, server)

	var discard any
	err := client.Decode(&discard)
	require.Error(t, err)
	assert.False(t, errors.Is(err, client.EndOfStreamError()))
}

type unroutedMsg struct{}

func (m *unroutedMsg) GetDiscriminator() string { return "obskit://test/v1/unrouted" }

func decodeEvents(t *testing.T, stream api.BidiStream, count int) []*api.Event {
	t.Helper()
	events := make([]*api.Event, 0, count)
	for i := 0; i < count; i++ {
		event := &api.Event{}
		require.NoError(t, stream.Decode(event))
		events = append(events, event)
	}
	return events
}
