package wskit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/obskit/pkg/host"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// MuxerMsg represents a framed message sent over the multiplexed WebSocket.
// Each message is scoped to a specific logical channel by ChannelID.
type MuxerMsg struct {
	ChannelID uuid.UUID `json:"channel_id"`
	Payload   []byte    `json:"payload"`
}

// WebSocketMuxer multiplexes multiple logical bidirectional streams over a single WebSocket connection.
// Each logical stream is identified by a ChannelID.
type WebSocketMuxer struct {
	Context    context.Context
	name       string
	conn       *websocket.Conn
	channels   map[uuid.UUID]*MuxerBidiStream
	channelsMu sync.RWMutex
	writeMu    sync.Mutex
	done       chan struct{}
	session    MuxerSession
	manager    host.Manager
}

// NewClientWebSocketMuxer will spawn a read loop as a go routine and returns the *WebSocketMuxer
func NewClientWebSocketMuxer(ctx context.Context, conn *websocket.Conn) *WebSocketMuxer {
	m := &WebSocketMuxer{
		Context:  ctx,
		name:     "client",
		conn:     conn,
		session:  NewClientMuxerSession(),
		channels: make(map[uuid.UUID]*MuxerBidiStream),
		done:     make(chan struct{}),
	}
	go m.readLoop()
	return m
}

// NewServerWebSocketMuxer will start a blocking read loop to keep the websocket connection open
func NewServerWebSocketMuxer(ctx context.Context, session MuxerSession, manager host.Manager, conn *websocket.Conn) {
	m := &WebSocketMuxer{
		Context:  ctx,
		name:     "server",
		conn:     conn,
		session:  session,
		manager:  manager,
		channels: make(map[uuid.UUID]*MuxerBidiStream),
		done:     make(chan struct{}),
	}
	m.readLoop()
}

// Serve blocks until the WebSocket connection is closed or an error occurs.
func (m *WebSocketMuxer) Serve() {
	<-m.done
}

// Register creates and tracks a new stream for the given ChannelID.
// If a stream with this ID already exists, it is overwritten.
func (m *WebSocketMuxer) Register(channelID uuid.UUID) api.BidiStream {
	return m.register(channelID)
}

// internal registration logic (safe for reuse)
func (m *WebSocketMuxer) register(channelID uuid.UUID) *MuxerBidiStream {
	sendFn := func(payload []byte) error {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		return websocket.JSON.Send(m.conn, &MuxerMsg{
			ChannelID: channelID,
			Payload:   payload,
		})
	}

	cleanup := func() {
		m.channelsMu.Lock()
		defer m.channelsMu.Unlock()
		delete(m.channels, channelID)
		slog.Debug("muxer: stream unregistered", slog.String("channel_id", channelID.String()))
	}

	bidi := NewMuxerBidiStream(sendFn, cleanup)

	m.channelsMu.Lock()
	m.channels[channelID] = bidi
	m.channelsMu.Unlock()

	slog.Debug("muxer: stream registered", slog.String("channel_id", channelID.String()))
	return bidi
}

// readLoop continuously receives messages from the WebSocket,
// routes them to the appropriate stream, and auto-registers new streams.
func (m *WebSocketMuxer) readLoop() {
	defer m.teardown()

	for {
		var msg MuxerMsg
		if err := websocket.JSON.Receive(m.conn, &msg); err != nil {
			slog.Debug("muxer: websocket receive error", slog.String("error", err.Error()))
			return
		}

		m.channelsMu.RLock()
		bidi, exists := m.channels[msg.ChannelID]
		m.channelsMu.RUnlock()

		ctx := host.WithChannelID(m.Context, msg.ChannelID)

		if !exists {
			if m.manager == nil {
				// Client side registers the channel before the read loop
				// sees it, so an unknown channel here is a stale frame.
				slog.DebugContext(ctx, "muxer: dropped frame for unknown channel", slog.String("channel_id", msg.ChannelID.String()))
				continue
			}
			bidi = m.register(msg.ChannelID)
			go m.dispatch(ctx, bidi)
		}

		select {
		case bidi.RecvChan() <- msg.Payload:
		case <-bidi.Closed():
			slog.DebugContext(ctx, "muxer: dropped message for closed stream", slog.String("channel_id", msg.ChannelID.String()))
		}
	}
}

// dispatch decodes the routed request on a fresh server channel, enforces
// the session scope, and hands the stream to the target host.
func (m *WebSocketMuxer) dispatch(ctx context.Context, bidi *MuxerBidiStream) {
	envelope := &polymorphic.Envelope{}
	if err := bidi.Decode(envelope); err != nil {
		bidi.Close(err)
		return
	}

	msg, ok := envelope.Content.(api.Routeable)
	if !ok {
		bidi.Close(fmt.Errorf("invalid request msg type: %T", envelope.Content))
		return
	}

	scoped, ok := msg.(api.HostScoped)
	if !ok {
		bidi.Close(fmt.Errorf("message is not host scoped: %T", msg))
		return
	}

	hostID := scoped.GetHostID()
	if !m.session.CanAccessHost(hostID) {
		bidi.Close(errors.New("host access denied"))
		return
	}

	h, err := m.manager.GetOrCreate(ctx, hostID)
	if err != nil {
		bidi.Close(err)
		return
	}

	h.Handle(ctx, msg, bidi)
}

// teardown closes every registered stream so pending decodes observe end
// of connection instead of blocking forever.
func (m *WebSocketMuxer) teardown() {
	m.channelsMu.Lock()
	channels := make([]*MuxerBidiStream, 0, len(m.channels))
	for _, bidi := range m.channels {
		channels = append(channels, bidi)
	}
	m.channelsMu.Unlock()

	for _, bidi := range channels {
		bidi.Close(nil)
	}
	close(m.done)
}
