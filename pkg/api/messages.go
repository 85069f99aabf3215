package api

import (
	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/lexkey"
	"github.com/google/uuid"
)

func init() {
	polymorphic.Register(func() *Subscribe { return &Subscribe{} })
	polymorphic.Register(func() *Publish { return &Publish{} })
	polymorphic.Register(func() *Replay { return &Replay{} })
	polymorphic.Register(func() *GetTopics { return &GetTopics{} })
	polymorphic.Register(func() *GetStatus { return &GetStatus{} })
}

// HostScoped is implemented by every request message so the server can
// route to a host and enforce session scopes before dispatch.
type HostScoped interface {
	GetHostID() uuid.UUID
}

// ─── Subscription ──────────────────────────────────────────────────────────────

// Subscribe opens a live subscription to a topic. Entries with sequence
// greater than MinSequence are replayed from the journal before live
// delivery begins.
type Subscribe struct {
	HostID      uuid.UUID `json:"host_id"`
	Topic       string    `json:"topic"`
	MinSequence uint64    `json:"min_sequence,omitempty"`
}

func (m *Subscribe) GetDiscriminator() string {
	return "obskit://api/v1/subscribe"
}

func (m *Subscribe) GetHostID() uuid.UUID { return m.HostID }

// Event is one notification on a subscription stream. The wire always
// carries a named event record, never a bare callback reference, so both
// sides agree on the observer shape after serialization.
type Event struct {
	Kind    string `json:"kind"`
	Entry   *Entry `json:"entry,omitempty"`
	Message string `json:"message,omitempty"`
}

// ─── API Messages ──────────────────────────────────────────────────────────────

type Publish struct {
	HostID uuid.UUID `json:"host_id"`
	Topic  string    `json:"topic"`
}

func (m *Publish) GetDiscriminator() string {
	return "obskit://api/v1/publish"
}

func (m *Publish) GetHostID() uuid.UUID { return m.HostID }

type Replay struct {
	HostID       uuid.UUID `json:"host_id"`
	Topic        string    `json:"topic"`
	MinSequence  uint64    `json:"min_sequence,omitempty"`
	MaxSequence  uint64    `json:"max_sequence,omitempty"`
	MinTimestamp int64     `json:"min_timestamp,omitempty"`
	MaxTimestamp int64     `json:"max_timestamp,omitempty"`
}

func (m *Replay) GetDiscriminator() string {
	return "obskit://api/v1/replay"
}

func (m *Replay) GetHostID() uuid.UUID { return m.HostID }

type GetTopics struct {
	HostID uuid.UUID `json:"host_id"`
}

func (m *GetTopics) GetDiscriminator() string {
	return "obskit://api/v1/get_topics"
}

func (m *GetTopics) GetHostID() uuid.UUID { return m.HostID }

type GetStatus struct {
	HostID uuid.UUID `json:"host_id"`
}

func (m *GetStatus) GetDiscriminator() string {
	return "obskit://api/v1/get_status"
}

func (m *GetStatus) GetHostID() uuid.UUID { return m.HostID }

type HostStatus struct {
	HostID     uuid.UUID `json:"host_id"`
	TopicCount int       `json:"topic_count"`
}

type TopicStatus struct {
	Topic          string `json:"topic"`
	FirstSequence  uint64 `json:"first_sequence"`
	FirstTimestamp int64  `json:"first_timestamp"`
	LastSequence   uint64 `json:"last_sequence"`
	LastTimestamp  int64  `json:"last_timestamp"`
}

// ─── Journal records ───────────────────────────────────────────────────────────

type Record struct {
	Sequence uint64            `json:"sequence"`
	Payload  []byte            `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Entry struct {
	Topic     string            `json:"topic"`
	Sequence  uint64            `json:"sequence"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (e *Entry) GetTopicOffset() lexkey.LexKey {
	return lexkey.Encode(DATA, TOPICS, e.Topic, e.Sequence)
}
