package remote

import (
	"context"

	"github.com/fgrzl/obskit/pkg/api"
)

// HasProxySubscription is implemented by observables that carry a live
// cross-boundary channel. Combinators that wrap an observable generally
// do not preserve it, which is why ReleaseOnFinish must be applied first.
type HasProxySubscription interface {
	ProxySubscription() *ProxySubscription
}

// RemoteObservable adapts a cross-boundary subscribable reference into a
// local observable. The reference may still be resolving; resolution is
// awaited once and shared by every subscriber.
type RemoteObservable[T any] struct {
	future *Future[api.Subscribable[T]]
	proxy  *ProxySubscription
}

// Wrap adapts a pending subscribable reference. If parent is non-nil the
// adapter's proxy subscription is registered with it immediately, so
// releasing the parent tears down the remote channel even before any
// subscriber attaches.
func Wrap[T any](future *Future[api.Subscribable[T]], parent *ProxySubscription) *RemoteObservable[T] {
	o := &RemoteObservable[T]{
		future: future,
		proxy:  NewProxySubscription(nil),
	}
	if parent != nil {
		parent.Add(o.proxy)
	}
	return o
}

// WrapRef adapts an already-resolved subscribable reference.
func WrapRef[T any](ref api.Subscribable[T], parent *ProxySubscription) *RemoteObservable[T] {
	return Wrap(Settled(ref), parent)
}

// ProxySubscription exposes the underlying channel handle for manual
// release.
func (o *RemoteObservable[T]) ProxySubscription() *ProxySubscription {
	return o.proxy
}

// Subscribe attaches an observer. Awaiting the reference resolution is
// the only suspension point; every event afterwards is pushed by the far
// side. The returned subscription releases the remote registration, even
// when the unsubscribe happens before the reference has resolved.
func (o *RemoteObservable[T]) Subscribe(ctx context.Context, observer api.Observer[T]) api.Subscription {
	local := NewProxySubscription(nil)

	go func() {
		ref, err := o.future.Await(ctx)
		if err != nil {
			if !local.Released() {
				observer.OnError(err)
			}
			return
		}

		releaser, err := ref.Subscribe(ctx, &forwardingObserver[T]{observer: observer, gate: local})
		if err != nil {
			if !local.Released() {
				observer.OnError(api.AsError(err))
			}
			return
		}

		// Link the disposal chain through the per-subscriber handle: local
		// unsubscribe and adapter release both reach the remote releaser
		// via the same idempotence-guarded node, so overlapping cascades
		// cannot double-signal the far side. If the subscriber unsubscribed
		// while the reference was resolving, Add fires immediately and no
		// remote subscription is left without a local owner.
		local.Add(releaser)
		o.proxy.Add(local)
	}()

	return local
}

// forwardingObserver forwards remote events to the local observer,
// normalizing error payloads and suppressing delivery after the local
// subscription is released.
type forwardingObserver[T any] struct {
	observer api.Observer[T]
	gate     *ProxySubscription
}

func (f *forwardingObserver[T]) OnNext(v T) {
	if f.gate.Released() {
		return
	}
	f.observer.OnNext(v)
}

func (f *forwardingObserver[T]) OnError(err error) {
	if f.gate.Released() {
		return
	}
	f.observer.OnError(api.AsError(err))
}

func (f *forwardingObserver[T]) OnComplete() {
	if f.gate.Released() {
		return
	}
	f.observer.OnComplete()
}
