package remote

import (
	"log/slog"
	"sync"

	"github.com/fgrzl/obskit/pkg/api"
)

// ProxySubscription is the disposable handle for a cross-boundary channel.
// Releasing it sends the release signal exactly once and cascades to any
// registered child releasers. It is safe for concurrent use.
type ProxySubscription struct {
	mu       sync.Mutex
	released bool
	releaser func()
	children []api.Releaser
}

// NewProxySubscription wraps a releaser callback. The callback sends the
// one-way release signal across the serialization boundary; it runs at
// most once. A nil releaser yields a handle useful purely for cascading.
func NewProxySubscription(releaser func()) *ProxySubscription {
	return &ProxySubscription{releaser: releaser}
}

// Add registers a child for cascading release. If the subscription is
// already released the child is released immediately, which is what
// closes the race between a local unsubscribe and a remote reference
// that resolved afterwards.
func (p *ProxySubscription) Add(child api.Releaser) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		child.Release()
		return
	}
	p.children = append(p.children, child)
	p.mu.Unlock()
}

// Release sends the release signal and cascades to children. Idempotent:
// a second call is a no-op. A panic inside the releaser is contained and
// does not corrupt the released state.
func (p *ProxySubscription) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	// Mark released before signaling so a failing releaser cannot leave
	// the handle half-disposed.
	p.released = true
	releaser := p.releaser
	children := p.children
	p.releaser = nil
	p.children = nil
	p.mu.Unlock()

	if releaser != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("proxy subscription: release signal failed", "error", r)
				}
			}()
			releaser()
		}()
	}

	for _, child := range children {
		child.Release()
	}
}

// Unsubscribe makes ProxySubscription usable wherever an api.Subscription
// is expected.
func (p *ProxySubscription) Unsubscribe() {
	p.Release()
}

func (p *ProxySubscription) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
