package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fgrzl/obskit/pkg/api"
	"github.com/google/uuid"
)

// NewSubscribable returns a reference to a topic's push stream on a
// remote host, reached over the bus. Each Subscribe opens its own logical
// stream; releasing the returned handle closes that stream, which is the
// fire-and-forget release signal the host observes.
func NewSubscribable(bus api.Bus, hostID uuid.UUID, topic string, minSequence uint64) api.Subscribable[*api.Entry] {
	return &busSubscribable{
		bus:         bus,
		hostID:      hostID,
		topic:       topic,
		minSequence: minSequence,
	}
}

type busSubscribable struct {
	bus         api.Bus
	hostID      uuid.UUID
	topic       string
	minSequence uint64
}

func (s *busSubscribable) Subscribe(ctx context.Context, observer api.Observer[*api.Entry]) (api.Releaser, error) {
	stream, err := s.bus.CallStream(ctx, &api.Subscribe{
		HostID:      s.hostID,
		Topic:       s.topic,
		MinSequence: s.minSequence,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			event := &api.Event{}
			if err := stream.Decode(event); err != nil {
				if errors.Is(err, stream.EndOfStreamError()) {
					observer.OnComplete()
				} else {
					observer.OnError(api.AsError(err))
				}
				return
			}
			switch event.Kind {
			case api.EventNext:
				observer.OnNext(event.Entry)
			case api.EventError:
				observer.OnError(api.AsError(event.Message))
				return
			case api.EventComplete:
				observer.OnComplete()
				return
			default:
				slog.Warn("subscription: unknown event kind", slog.String("kind", event.Kind))
			}
		}
	}()

	return &streamReleaser{stream: stream}, nil
}

type streamReleaser struct {
	stream api.BidiStream
	once   sync.Once
}

func (r *streamReleaser) Release() {
	r.once.Do(func() {
		r.stream.Close(nil)
	})
}
