package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/messaging"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/obskit/pkg/observable"
	"github.com/fgrzl/obskit/pkg/storage"
	"github.com/google/uuid"
)

// liveBuffer is the per-subscriber backlog between journal replay and
// live delivery. A subscriber that falls this far behind is dropped.
const liveBuffer = 256

// Host serves one journal's topics. Handle owns the stream for the
// lifetime of the request.
type Host interface {
	Handle(ctx context.Context, msg api.Routeable, bidi api.BidiStream)
	Close()
}

func NewHost(hostID uuid.UUID, journal storage.Journal, busFactory messaging.MessageBusFactory) Host {
	return &defaultHost{
		hostID:     hostID,
		journal:    journal,
		busFactory: busFactory,
		subjects:   make(map[string]*observable.Subject[*api.Entry]),
	}
}

type defaultHost struct {
	hostID     uuid.UUID
	journal    storage.Journal
	busFactory messaging.MessageBusFactory

	mu       sync.Mutex
	subjects map[string]*observable.Subject[*api.Entry]

	closeOnce sync.Once
}

func (h *defaultHost) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		subjects := make([]*observable.Subject[*api.Entry], 0, len(h.subjects))
		for _, subject := range h.subjects {
			subjects = append(subjects, subject)
		}
		h.subjects = nil
		h.mu.Unlock()

		for _, subject := range subjects {
			subject.Complete()
		}
		h.journal.Close()
	})
}

func (h *defaultHost) Handle(ctx context.Context, msg api.Routeable, bidi api.BidiStream) {

	defer func() {
		if r := recover(); r != nil {
			bidi.Close(fmt.Errorf("panic: %v", r))
		}
	}()

	switch args := msg.(type) {
	case *api.Subscribe:
		h.handleSubscribe(ctx, args, bidi)
	case *api.Publish:
		h.handlePublish(ctx, args, bidi)
	case *api.Replay:
		h.handleReplay(ctx, args, bidi)
	case *api.GetTopics:
		h.handleGetTopics(ctx, args, bidi)
	case *api.GetStatus:
		h.handleGetStatus(ctx, args, bidi)
	default:
		bidi.Close(fmt.Errorf("invalid request msg type: %T", msg))
	}
}

// handleSubscribe replays the journal past args.MinSequence, then forwards
// live entries until the subscriber releases, the topic terminates, or
// the context ends. The client signals release by closing its stream.
func (h *defaultHost) handleSubscribe(ctx context.Context, args *api.Subscribe, bidi api.BidiStream) {
	if args.Topic == "" {
		bidi.CloseSend(api.ERR_TOPIC_REQUIRED)
		return
	}

	subject, err := h.subject(args.Topic)
	if err != nil {
		bidi.CloseSend(err)
		return
	}

	live := make(chan *api.Entry, liveBuffer)
	terminal := make(chan error, 1)
	overflow := make(chan struct{})
	var overflowOnce sync.Once

	observer := api.NewObserver(
		func(entry *api.Entry) {
			select {
			case live <- entry:
			default:
				overflowOnce.Do(func() { close(overflow) })
			}
		},
		func(err error) { terminal <- err },
		func() { terminal <- nil },
	)

	// Attach before replay so nothing published in between is missed.
	sub := subject.Subscribe(ctx, observer)
	defer sub.Unsubscribe()

	released := h.watchRelease(bidi)

	maxSeq, ok := h.replay(ctx, args, bidi)
	if !ok {
		return
	}

	for {
		select {
		case <-released:
			bidi.Close(nil)
			return
		case <-ctx.Done():
			bidi.CloseSend(ctx.Err())
			return
		case <-overflow:
			bidi.CloseSend(errors.New("subscriber fell behind"))
			return
		case err := <-terminal:
			if err != nil {
				_ = bidi.Encode(&api.Event{Kind: api.EventError, Message: err.Error()})
			} else {
				_ = bidi.Encode(&api.Event{Kind: api.EventComplete})
			}
			bidi.CloseSend(nil)
			return
		case entry := <-live:
			// Entries already delivered during replay come around again
			// on the live path; sequence ordering dedupes them.
			if entry.Sequence <= maxSeq {
				continue
			}
			maxSeq = entry.Sequence
			if err := bidi.Encode(&api.Event{Kind: api.EventNext, Entry: entry}); err != nil {
				bidi.Close(err)
				return
			}
		}
	}
}

// replay streams journal entries with sequence greater than MinSequence.
// Returns the highest sequence sent and whether the stream is still usable.
func (h *defaultHost) replay(ctx context.Context, args *api.Subscribe, bidi api.BidiStream) (uint64, bool) {
	maxSeq := args.MinSequence

	entries := h.journal.Read(ctx, &api.Replay{
		HostID:      args.HostID,
		Topic:       args.Topic,
		MinSequence: args.MinSequence,
	})
	defer entries.Dispose()

	for entries.MoveNext() {
		entry, err := entries.Current()
		if err != nil {
			bidi.CloseSend(err)
			return maxSeq, false
		}
		if err := bidi.Encode(&api.Event{Kind: api.EventNext, Entry: entry}); err != nil {
			bidi.Close(err)
			return maxSeq, false
		}
		if entry.Sequence > maxSeq {
			maxSeq = entry.Sequence
		}
	}
	return maxSeq, true
}

// watchRelease drains the inbound side of the stream. The returned channel
// closes when the subscriber ends its send side or tears the stream down.
func (h *defaultHost) watchRelease(bidi api.BidiStream) <-chan struct{} {
	released := make(chan struct{})
	go func() {
		defer close(released)
		for {
			var discard json.RawMessage
			if err := bidi.Decode(&discard); err != nil {
				return
			}
		}
	}()
	return released
}

// handlePublish appends the inbound record stream to the journal and fans
// each committed chunk out to live subscribers before acknowledging it.
func (h *defaultHost) handlePublish(ctx context.Context, args *api.Publish, bidi api.BidiStream) {
	if args.Topic == "" {
		bidi.CloseSend(api.ERR_TOPIC_REQUIRED)
		return
	}

	records := api.NewStreamEnumerator[*api.Record](bidi)
	results := h.journal.Append(ctx, args.Topic, records)
	defer results.Dispose()

	for results.MoveNext() {
		if !checkContext(ctx, bidi) {
			return
		}
		status, err := results.Current()
		if err != nil {
			bidi.CloseSend(err)
			return
		}
		h.broadcast(ctx, args.Topic, status)
		if err := bidi.Encode(status); err != nil {
			bidi.CloseSend(err)
			return
		}
	}
	bidi.CloseSend(nil)
}

// broadcast replays a committed chunk out of the journal and pushes it to
// the topic's live subscribers.
func (h *defaultHost) broadcast(ctx context.Context, topic string, status *api.TopicStatus) {
	subject, err := h.subject(topic)
	if err != nil {
		return
	}

	entries := h.journal.Read(ctx, &api.Replay{
		HostID:      h.hostID,
		Topic:       topic,
		MinSequence: status.FirstSequence - 1,
		MaxSequence: status.LastSequence,
	})
	defer entries.Dispose()

	for entries.MoveNext() {
		entry, err := entries.Current()
		if err != nil {
			return
		}
		subject.Next(entry)
	}
}

func (h *defaultHost) handleReplay(ctx context.Context, args *api.Replay, bidi api.BidiStream) {
	enumerator := h.journal.Read(ctx, args)
	streamEntries(ctx, enumerator, bidi)
}

func (h *defaultHost) handleGetTopics(ctx context.Context, _ *api.GetTopics, bidi api.BidiStream) {
	enumerator := h.journal.Topics(ctx)
	streamNames(ctx, enumerator, bidi)
}

func (h *defaultHost) handleGetStatus(ctx context.Context, _ *api.GetStatus, bidi api.BidiStream) {
	if !checkContext(ctx, bidi) {
		return
	}

	topics := h.journal.Topics(ctx)
	count := 0
	err := enumerators.Consume(enumerators.Map(topics, func(string) (struct{}, error) {
		count++
		return struct{}{}, nil
	}))
	if err != nil {
		bidi.CloseSend(err)
		return
	}

	status := &api.HostStatus{HostID: h.hostID, TopicCount: count}
	if err := bidi.Encode(status); err != nil {
		bidi.CloseSend(err)
		return
	}
	bidi.CloseSend(nil)
}

// subject returns the topic's live fan-out, creating it on first use.
func (h *defaultHost) subject(topic string) (*observable.Subject[*api.Entry], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subjects == nil {
		return nil, errors.New("host closed")
	}
	subject, ok := h.subjects[topic]
	if !ok {
		subject = observable.NewSubject[*api.Entry]()
		h.subjects[topic] = subject
	}
	return subject, nil
}

func streamNames(ctx context.Context, enumerator enumerators.Enumerator[string], bidi api.BidiStream) {
	defer enumerator.Dispose()
	for enumerator.MoveNext() {
		if !checkContext(ctx, bidi) {
			return
		}
		name, err := enumerator.Current()
		if err != nil {
			bidi.CloseSend(err)
			return
		}
		if err := bidi.Encode(name); err != nil {
			bidi.CloseSend(err)
			return
		}
	}
	bidi.CloseSend(nil)
}

func streamEntries(ctx context.Context, enumerator enumerators.Enumerator[*api.Entry], bidi api.BidiStream) {
	defer enumerator.Dispose()
	for enumerator.MoveNext() {
		if !checkContext(ctx, bidi) {
			return
		}
		entry, err := enumerator.Current()
		if err != nil {
			bidi.CloseSend(err)
			return
		}
		if err := bidi.Encode(entry); err != nil {
			bidi.CloseSend(err)
			return
		}
	}
	bidi.CloseSend(nil)
}

func checkContext(ctx context.Context, bidi api.BidiStream) bool {
	if err := ctx.Err(); err != nil {
		bidi.CloseSend(err)
		return false
	}
	return true
}
