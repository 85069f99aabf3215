package pebble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/lexkey"
	"github.com/fgrzl/obskit/internal/cache"
	"github.com/fgrzl/obskit/internal/codec"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/timestamp"
)

type PebbleJournal struct {
	db        *pebble.DB
	cache     *cache.ExpiringCache
	closeOnce sync.Once
}

func NewPebbleJournal(path string, cache *cache.ExpiringCache) (*PebbleJournal, error) {
	dbPath := filepath.Join(path, "journal")
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleJournal{
		db:    db,
		cache: cache,
	}, nil
}

func (j *PebbleJournal) Close() {
	j.closeOnce.Do(func() {
		j.db.Close()
		j.cache.Close()
	})
}

func (j *PebbleJournal) Topics(ctx context.Context) enumerators.Enumerator[string] {
	lower, upper := lexkey.EncodeFirst(api.INVENTORY, api.TOPICS), lexkey.EncodeLast(api.INVENTORY, api.TOPICS)
	return enumerators.Map(
		NewPebbleEnumerator(ctx, j.db, &pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		}),
		func(kv KeyValuePair) (string, error) {
			return string(kv.Value), nil
		})
}

func (j *PebbleJournal) Last(ctx context.Context, topic string) (*api.Entry, error) {
	lower := lexkey.EncodeFirst(api.DATA, api.TOPICS, topic)
	upper := lexkey.EncodeLast(api.DATA, api.TOPICS, topic)

	iter, err := j.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.SeekLT(upper) {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	entry := &api.Entry{}
	if err := codec.DecodeEntry(iter.Value(), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (j *PebbleJournal) Read(ctx context.Context, args *api.Replay) enumerators.Enumerator[*api.Entry] {
	if args == nil || args.Topic == "" {
		return enumerators.Error[*api.Entry](api.ERR_TOPIC_REQUIRED)
	}

	ts := timestamp.GetTimestamp()
	bounds := calculateBounds(ts, args)
	lower, upper := j.sequenceBounds(args.Topic, args.MinSequence, args.MaxSequence)

	entries := enumerators.Map(
		NewPebbleEnumerator(ctx, j.db, &pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		}),
		func(kv KeyValuePair) (*api.Entry, error) {
			entry := &api.Entry{}
			if err := codec.DecodeEntry(kv.Value, entry); err != nil {
				return nil, err
			}
			return entry, nil
		})

	return enumerators.TakeWhile(entries, func(entry *api.Entry) bool {
		return entry.Sequence > bounds.MinSeq &&
			entry.Sequence <= bounds.MaxSeq &&
			entry.Timestamp > bounds.MinTS &&
			entry.Timestamp <= bounds.MaxTS
	})
}

func (j *PebbleJournal) Append(ctx context.Context, topic string, records enumerators.Enumerator[*api.Record]) enumerators.Enumerator[*api.TopicStatus] {
	if topic == "" {
		return enumerators.Error[*api.TopicStatus](api.ERR_TOPIC_REQUIRED)
	}

	lastEntry, err := j.Last(ctx, topic)
	if err != nil {
		return enumerators.Error[*api.TopicStatus](fmt.Errorf("last entry lookup failed: %w", err))
	}
	if lastEntry == nil {
		lastEntry = &api.Entry{Sequence: 0}
	}

	lastSeq := lastEntry.Sequence
	chunks := enumerators.ChunkByCount(records, 10_000)

	return enumerators.Map(chunks, func(chunk enumerators.Enumerator[*api.Record]) (*api.TopicStatus, error) {
		ts := timestamp.GetTimestamp()
		batch := j.db.NewBatch()
		defer batch.Close()

		var first, last *api.Entry
		for chunk.MoveNext() {
			record, err := chunk.Current()
			if err != nil {
				return nil, err
			}

			if record.Sequence != lastSeq+1 {
				return nil, fmt.Errorf("%w: expected %d, got %d", api.ERR_SEQUENCE_MISMATCH, lastSeq+1, record.Sequence)
			}
			lastSeq = record.Sequence

			entry := &api.Entry{
				Topic:     topic,
				Sequence:  record.Sequence,
				Timestamp: ts,
				Payload:   record.Payload,
				Metadata:  record.Metadata,
			}

			data, err := codec.EncodeEntry(entry)
			if err != nil {
				return nil, err
			}

			if err := batch.Set(entry.GetTopicOffset(), data, pebble.NoSync); err != nil {
				return nil, err
			}

			if err := j.updateInventory(batch, topic); err != nil {
				return nil, err
			}

			if first == nil {
				first = entry
			}
			last = entry
		}

		if first == nil || last == nil {
			return nil, errors.New("empty chunk unexpectedly")
		}

		if err := batch.Commit(pebble.Sync); err != nil {
			return nil, err
		}

		return &api.TopicStatus{
			Topic:          topic,
			FirstSequence:  first.Sequence,
			FirstTimestamp: first.Timestamp,
			LastSequence:   last.Sequence,
			LastTimestamp:  last.Timestamp,
		}, nil
	})
}

func (j *PebbleJournal) sequenceBounds(topic string, minSeq, maxSeq uint64) (lexkey.LexKey, lexkey.LexKey) {
	lower := lexkey.EncodeFirst(api.DATA, api.TOPICS, topic)
	if minSeq > 0 {
		// EncodeFirst sorts just past the exact sequence key, so the
		// lower bound is exclusive of minSeq.
		lower = lexkey.EncodeFirst(api.DATA, api.TOPICS, topic, minSeq)
	}
	upper := lexkey.EncodeLast(api.DATA, api.TOPICS, topic)
	if maxSeq > 0 {
		upper = lexkey.EncodeLast(api.DATA, api.TOPICS, topic, maxSeq)
	}
	return lower, upper
}

func (j *PebbleJournal) updateInventory(batch *pebble.Batch, topic string) error {
	topicKey := lexkey.Encode(api.INVENTORY, api.TOPICS, topic)
	cacheKey := topicKey.ToHexString()

	if _, ok := j.cache.Get(cacheKey); ok {
		return nil
	}

	if err := batch.Set(topicKey, []byte(topic), pebble.NoSync); err != nil {
		return err
	}

	j.cache.Set(cacheKey, struct{}{})
	return nil
}

type replayBounds struct {
	MinSeq, MaxSeq uint64
	MinTS, MaxTS   int64
}

func calculateBounds(ts int64, args *api.Replay) replayBounds {
	bounds := replayBounds{
		MinSeq: args.MinSequence,
		MaxSeq: args.MaxSequence,
		MinTS:  args.MinTimestamp,
	}
	if bounds.MinTS > ts {
		bounds.MinTS = ts
	}
	if args.MaxTimestamp == 0 || args.MaxTimestamp > ts {
		bounds.MaxTS = ts
	} else {
		bounds.MaxTS = args.MaxTimestamp
	}
	if bounds.MaxSeq == 0 {
		bounds.MaxSeq = math.MaxUint64
	} else if bounds.MaxSeq < bounds.MinSeq {
		bounds.MaxSeq = bounds.MinSeq
	}
	return bounds
}
