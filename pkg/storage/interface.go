package storage

import (
	"context"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/google/uuid"
)

// JournalFactory defines how to create new journal instances per host.
type JournalFactory interface {
	NewJournal(ctx context.Context, hostID uuid.UUID) (Journal, error)
}

// Journal is a durable, sequence-ordered event log per topic. Subscribers
// replay from it before live delivery begins.
type Journal interface {
	Topics(ctx context.Context) enumerators.Enumerator[string]
	Read(ctx context.Context, args *api.Replay) enumerators.Enumerator[*api.Entry]
	Last(ctx context.Context, topic string) (*api.Entry, error)
	Append(ctx context.Context, topic string, records enumerators.Enumerator[*api.Record]) enumerators.Enumerator[*api.TopicStatus]
	Close()
}
