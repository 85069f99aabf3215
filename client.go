package obskit

import (
	"context"
	"log/slog"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/obskit/pkg/remote"
	"github.com/google/uuid"
)

type Entry = api.Entry
type Record = api.Record
type Event = api.Event
type Replay = api.Replay
type TopicStatus = api.TopicStatus
type HostStatus = api.HostStatus

type Client interface {

	// Get the host status.
	GetStatus(ctx context.Context, hostID uuid.UUID) (*HostStatus, error)

	// Get all the topics on a host.
	GetTopics(ctx context.Context, hostID uuid.UUID) enumerators.Enumerator[string]

	// Replay a topic's journal within the requested bounds.
	Replay(ctx context.Context, hostID uuid.UUID, args *Replay) enumerators.Enumerator[*Entry]

	// Publish stream records to a topic.
	Publish(ctx context.Context, hostID uuid.UUID, topic string, records enumerators.Enumerator[*Record]) enumerators.Enumerator[*TopicStatus]

	// Observe a topic as a local observable backed by a remote
	// subscription. Each subscriber shares one resolved channel;
	// releasing the returned adapter's handle tears the channel down.
	Observe(hostID uuid.UUID, topic string, minSequence uint64) *remote.RemoteObservable[*Entry]

	// Subscribe to a topic with a callback. The subscription releases its
	// remote channel when unsubscribed or when the stream terminates.
	// Remote failures are logged; use Observe with a full observer to
	// handle them in code.
	SubscribeToTopic(ctx context.Context, hostID uuid.UUID, topic string, minSequence uint64, handler func(*Entry)) (api.Subscription, error)

	// Close releases every remote channel opened through this client.
	Close()
}

func NewClient(bus api.Bus) Client {
	return &client{
		bus:  bus,
		root: remote.NewProxySubscription(nil),
	}
}

type client struct {
	bus  api.Bus
	root *remote.ProxySubscription
}

func (c *client) GetStatus(ctx context.Context, hostID uuid.UUID) (*HostStatus, error) {
	stream, err := c.bus.CallStream(ctx, &api.GetStatus{HostID: hostID})
	if err != nil {
		return nil, err
	}
	defer stream.Close(nil)

	status := &HostStatus{}
	if err := stream.Decode(status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *client) GetTopics(ctx context.Context, hostID uuid.UUID) enumerators.Enumerator[string] {
	stream, err := c.bus.CallStream(ctx, &api.GetTopics{HostID: hostID})
	if err != nil {
		return enumerators.Error[string](err)
	}
	return api.NewStreamEnumerator[string](stream)
}

func (c *client) Replay(ctx context.Context, hostID uuid.UUID, args *Replay) enumerators.Enumerator[*Entry] {
	msg := *args
	msg.HostID = hostID
	stream, err := c.bus.CallStream(ctx, &msg)
	if err != nil {
		return enumerators.Error[*Entry](err)
	}
	return api.NewStreamEnumerator[*Entry](stream)
}

func (c *client) Publish(ctx context.Context, hostID uuid.UUID, topic string, records enumerators.Enumerator[*Record]) enumerators.Enumerator[*TopicStatus] {
	stream, err := c.bus.CallStream(ctx, &api.Publish{HostID: hostID, Topic: topic})
	if err != nil {
		return enumerators.Error[*TopicStatus](err)
	}

	go func() {
		defer records.Dispose()
		for records.MoveNext() {
			record, err := records.Current()
			if err != nil {
				stream.CloseSend(err)
				return
			}
			if err := stream.Encode(record); err != nil {
				stream.CloseSend(err)
				return
			}
		}
		stream.CloseSend(nil)
	}()

	return api.NewStreamEnumerator[*TopicStatus](stream)
}

func (c *client) Observe(hostID uuid.UUID, topic string, minSequence uint64) *remote.RemoteObservable[*Entry] {
	ref := remote.NewSubscribable(c.bus, hostID, topic, minSequence)
	return remote.WrapRef(ref, c.root)
}

func (c *client) SubscribeToTopic(ctx context.Context, hostID uuid.UUID, topic string, minSequence uint64, handler func(*Entry)) (api.Subscription, error) {
	observable := remote.ReleaseOnFinish(c.Observe(hostID, topic, minSequence))
	observer := api.NewObserver(
		handler,
		func(err error) {
			slog.Error("topic subscription failed", "host_id", hostID, "topic", topic, "error", err)
		},
		nil,
	)
	sub := observable.Subscribe(ctx, observer)
	return sub, nil
}

func (c *client) Close() {
	c.root.Release()
}
