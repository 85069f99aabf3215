package api

import "context"

// Observer receives push notifications. After OnError or OnComplete no
// further calls are made.
type Observer[T any] interface {
	OnNext(T)
	OnError(error)
	OnComplete()
}

// Observable is the local push-stream contract. Subscribe registers the
// observer and returns a handle that stops delivery when unsubscribed.
// The context bounds only the attach itself; delivery is driven by the
// producer and stopped via the returned Subscription.
type Observable[T any] interface {
	Subscribe(ctx context.Context, observer Observer[T]) Subscription
}

// Subscription stops delivery to its observer. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Releaser is a one-shot disposal capability. Release is idempotent and
// fire-and-forget: it does not wait for the far side to acknowledge.
type Releaser interface {
	Release()
}

// Subscribable is a reference to a push stream on the far side of a
// serialized channel. Subscribe registers the observer remotely and
// returns the capability that tears the remote registration down. All
// calls across the channel are asynchronous; the observer is invoked as
// events arrive.
type Subscribable[T any] interface {
	Subscribe(ctx context.Context, observer Observer[T]) (Releaser, error)
}

// NewObserver canonicalizes callback-style subscription into the Observer
// shape. Nil callbacks are no-ops, so callers may supply only next.
func NewObserver[T any](next func(T), onError func(error), complete func()) Observer[T] {
	return &funcObserver[T]{next: next, err: onError, complete: complete}
}

type funcObserver[T any] struct {
	next     func(T)
	err      func(error)
	complete func()
}

func (o *funcObserver[T]) OnNext(v T) {
	if o.next != nil {
		o.next(v)
	}
}

func (o *funcObserver[T]) OnError(err error) {
	if o.err != nil {
		o.err(err)
	}
}

func (o *funcObserver[T]) OnComplete() {
	if o.complete != nil {
		o.complete()
	}
}
