package pebble

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fgrzl/obskit/internal/cache"
	"github.com/fgrzl/obskit/pkg/storage"
	"github.com/google/uuid"
)

var (
	CacheTTL             time.Duration = time.Second * 97
	CacheCleanupInterval time.Duration = time.Second * 59
)

// PebbleJournalOptions configures the on-disk journal location.
type PebbleJournalOptions struct {
	Path string
}

// JournalFactory creates Pebble-backed journals, one directory per host.
type JournalFactory struct {
	options *PebbleJournalOptions
}

func NewJournalFactory(options *PebbleJournalOptions) (*JournalFactory, error) {
	return &JournalFactory{options: options}, nil
}

func (f *JournalFactory) NewJournal(ctx context.Context, hostID uuid.UUID) (storage.Journal, error) {
	path := filepath.Join(f.options.Path, hostID.String())
	cache := cache.NewExpiringCache(CacheTTL, CacheCleanupInterval)
	return NewPebbleJournal(path, cache)
}
