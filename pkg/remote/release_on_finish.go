package remote

import (
	"context"
	"log/slog"

	"github.com/fgrzl/obskit/pkg/api"
)

// ReleaseOnFinish releases the source's proxy subscription once the
// stream terminates (complete or error) or the subscriber unsubscribes.
// Apply it directly to an adapter's output, before other combinators
// strip the proxy subscription.
//
// Do not use it on a source that will be resubscribed after its first
// completion: the released channel cannot serve a later subscribe. The
// safe pattern is one adapter per remote call, used exactly once.
//
// A source without a proxy subscription is passed through unchanged with
// a warning; this is a convenience operator, not a correctness gate.
func ReleaseOnFinish[T any](source api.Observable[T]) api.Observable[T] {
	carrier, ok := source.(HasProxySubscription)
	if !ok {
		slog.Warn("release on finish: source does not carry a proxy subscription, passing through")
		return source
	}
	return &releaseOnFinish[T]{source: source, proxy: carrier.ProxySubscription()}
}

type releaseOnFinish[T any] struct {
	source api.Observable[T]
	proxy  *ProxySubscription
}

func (r *releaseOnFinish[T]) Subscribe(ctx context.Context, observer api.Observer[T]) api.Subscription {
	inner := r.source.Subscribe(ctx, api.NewObserver(
		observer.OnNext,
		func(err error) {
			observer.OnError(err)
			r.proxy.Release()
		},
		func() {
			observer.OnComplete()
			r.proxy.Release()
		},
	))

	return &releaseOnFinishSubscription{inner: inner, proxy: r.proxy}
}

type releaseOnFinishSubscription struct {
	inner api.Subscription
	proxy *ProxySubscription
}

func (s *releaseOnFinishSubscription) Unsubscribe() {
	s.inner.Unsubscribe()
	s.proxy.Release()
}
