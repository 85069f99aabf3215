package wskit

import (
	"context"
	"net/http"
	"sync"

	"github.com/fgrzl/obskit/pkg/api"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// WebSocketBus carries muxed streams over a single authenticated
// WebSocket connection, dialed on first use.
type WebSocketBus struct {
	addr   string
	origin string
	token  string

	mu    sync.Mutex
	muxer *WebSocketMuxer
}

// NewWebSocketBus creates a bus that uses a dedicated WebSocket connection.
func NewWebSocketBus(addr, token string) api.Bus {
	return &WebSocketBus{
		addr:   addr,
		origin: "http://localhost",
		token:  token,
	}
}

// CallStream opens a muxed stream over the WebSocket for a single logical interaction.
func (b *WebSocketBus) CallStream(ctx context.Context, msg api.Routeable) (api.BidiStream, error) {
	muxer, err := b.getOrCreateMuxer(ctx)
	if err != nil {
		return nil, err
	}

	stream := muxer.Register(uuid.New())

	if err := stream.Encode(msg); err != nil {
		stream.Close(err)
		return nil, err
	}

	return stream, nil
}

// getOrCreateMuxer dials and initializes the WebSocket muxer if needed.
func (b *WebSocketBus) getOrCreateMuxer(ctx context.Context) (*WebSocketMuxer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.muxer != nil {
		return b.muxer, nil
	}

	conn, err := b.dial()
	if err != nil {
		return nil, err
	}

	muxer := NewClientWebSocketMuxer(ctx, conn)
	b.muxer = muxer
	return muxer, nil
}

// dial establishes the raw WebSocket connection with token-based auth.
func (b *WebSocketBus) dial() (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(b.addr, b.origin)
	if err != nil {
		return nil, err
	}

	cfg.Header = http.Header{}
	cfg.Header.Set("Authorization", "Bearer "+b.token)

	return websocket.DialConfig(cfg)
}
