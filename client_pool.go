package obskit

import (
	"sync"

	"github.com/fgrzl/obskit/pkg/api"
)

// ClientPool shares one client per caller token so every subscription of
// that caller rides the same muxed connection.
type ClientPool struct {
	mu      sync.RWMutex
	clients map[string]Client
	factory func(token string) api.Bus
}

func NewClientPool(factory func(token string) api.Bus) *ClientPool {
	return &ClientPool{
		clients: make(map[string]Client),
		factory: factory,
	}
}

func (p *ClientPool) GetClient(token string) Client {
	p.mu.RLock()
	client, ok := p.clients[token]
	p.mu.RUnlock()
	if ok {
		return client
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check in case it was created between locks
	if client, ok := p.clients[token]; ok {
		return client
	}

	bus := p.factory(token)
	client = NewClient(bus)
	p.clients[token] = client
	return client
}

// Close releases every pooled client's remote channels.
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for token, client := range p.clients {
		client.Close()
		delete(p.clients, token)
	}
}
