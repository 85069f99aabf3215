package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/lexkey"
	"github.com/fgrzl/obskit/internal/cache"
	"github.com/fgrzl/obskit/internal/codec"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/fgrzl/timestamp"
)

const (
	BatchSize         int           = 100
	InitialRetryDelay time.Duration = time.Millisecond * 100
	MaxRetryAttempts  int           = 3
	LAST_ENTRY        string        = "LAST_ENTRY"
)

type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Value        []byte `json:"Value,omitempty"`
}

// AzureJournal stores the topic journal in a single Azure Table: one row
// per entry keyed by topic partition and sequence row, a LAST_ENTRY row
// per topic, and an inventory row per topic.
type AzureJournal struct {
	client *aztables.Client
	cache  *cache.ExpiringCache
}

func NewAzureJournal(ctx context.Context, client *aztables.Client, cache *cache.ExpiringCache) (*AzureJournal, error) {
	journal := &AzureJournal{
		client: client,
		cache:  cache,
	}
	if err := journal.createTableIfNotExists(ctx); err != nil {
		return nil, fmt.Errorf("create table if not exists failed: %w", err)
	}
	return journal, nil
}

func (j *AzureJournal) Close() {
	j.cache.Close()
}

func (j *AzureJournal) Topics(ctx context.Context) enumerators.Enumerator[string] {
	query := buildQuery(
		lexkey.EncodeFirst(api.INVENTORY, api.TOPICS).ToHexString(),
		lexkey.EncodeLast(api.INVENTORY, api.TOPICS).ToHexString(),
	)

	entities := NewAzureTableEnumerator(ctx, j.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &query,
		Format: ptr(aztables.MetadataFormatNone),
	}))

	return enumerators.Map(entities, func(e *entity) (string, error) {
		return e.RowKey, nil
	})
}

func (j *AzureJournal) Last(ctx context.Context, topic string) (*api.Entry, error) {
	cacheKey := fmt.Sprintf("last:%s", topic)
	if cached, ok := j.cache.Get(cacheKey); ok {
		if entry, ok := cached.(*api.Entry); ok {
			return entry, nil
		}
	}

	pk := lexkey.Encode(LAST_ENTRY, topic).ToHexString()
	rk := lexkey.Encode(lexkey.EndMarker).ToHexString()

	resp, err := j.client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last entry lookup failed: %w", err)
	}

	var e entity
	if err := json.Unmarshal(resp.Value, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	entry, err := decodeEntry(e.Value)
	if err != nil {
		return nil, err
	}
	j.cache.Set(cacheKey, entry)
	return entry, nil
}

func (j *AzureJournal) Read(ctx context.Context, args *api.Replay) enumerators.Enumerator[*api.Entry] {
	if args == nil || args.Topic == "" {
		return enumerators.Error[*api.Entry](api.ERR_TOPIC_REQUIRED)
	}

	ts := timestamp.GetTimestamp()
	bounds := calculateBounds(ts, args)

	pLower := lexkey.EncodeFirst(api.DATA, api.TOPICS, args.Topic).ToHexString()
	pUpper := lexkey.EncodeLast(api.DATA, api.TOPICS, args.Topic).ToHexString()
	rLower := lexkey.EncodeFirst(bounds.MinSeq).ToHexString()
	rUpper := lexkey.EncodeLast(bounds.MaxSeq).ToHexString()

	query := fmt.Sprintf("PartitionKey ge '%s' and PartitionKey le '%s' and RowKey ge '%s' and RowKey le '%s'",
		pLower, pUpper, rLower, rUpper)

	entities := NewAzureTableEnumerator(ctx, j.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &query,
		Format: ptr(aztables.MetadataFormatNone),
	}))

	entries := enumerators.Map(entities, func(e *entity) (*api.Entry, error) {
		return decodeEntry(e.Value)
	})

	return enumerators.TakeWhile(entries, func(e *api.Entry) bool {
		return e.Sequence > bounds.MinSeq &&
			e.Sequence <= bounds.MaxSeq &&
			e.Timestamp > bounds.MinTS &&
			e.Timestamp <= bounds.MaxTS
	})
}

func (j *AzureJournal) Append(ctx context.Context, topic string, records enumerators.Enumerator[*api.Record]) enumerators.Enumerator[*api.TopicStatus] {
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
	chunks := enumerators.ChunkByCount(records, BatchSize)

	return enumerators.Map(chunks, func(chunk enumerators.Enumerator[*api.Record]) (*api.TopicStatus, error) {
		return j.appendChunkWithRetry(ctx, topic, chunk, &lastSeq)
	})
}

func (j *AzureJournal) appendChunkWithRetry(ctx context.Context, topic string, chunk enumerators.Enumerator[*api.Record], lastSeq *uint64) (*api.TopicStatus, error) {
	entries, err := createEntries(chunk, topic, *lastSeq)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetryAttempts; attempt++ {
		status, err := j.appendEntries(ctx, topic, entries)
		if err == nil {
			*lastSeq = status.LastSequence
			j.cache.Set(fmt.Sprintf("last:%s", topic), entries[len(entries)-1])
			return status, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		lastErr = err
		time.Sleep(InitialRetryDelay * time.Duration(attempt+1))
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", MaxRetryAttempts, lastErr)
}

func (j *AzureJournal) appendEntries(ctx context.Context, topic string, entries []*api.Entry) (*api.TopicStatus, error) {
	actions := make([]aztables.TransactionAction, 0, len(entries))
	for _, entry := range entries {
		encoded, err := codec.EncodeEntry(entry)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeInsertReplace,
			Entity: mustMarshal(entity{
				PartitionKey: lexkey.Encode(api.DATA, api.TOPICS, topic).ToHexString(),
				RowKey:       lexkey.Encode(entry.Sequence).ToHexString(),
				Value:        encoded,
			}),
		})
	}

	if _, err := j.client.SubmitTransaction(ctx, actions, nil); err != nil && err.Error() != "unexpected EOF" {
		return nil, fmt.Errorf("batch write failed: %w", err)
	}

	if err := j.writeLastEntry(ctx, topic, entries[len(entries)-1]); err != nil {
		return nil, err
	}
	if err := j.updateInventory(ctx, topic); err != nil {
		return nil, err
	}

	return &api.TopicStatus{
		Topic:          topic,
		FirstSequence:  entries[0].Sequence,
		FirstTimestamp: entries[0].Timestamp,
		LastSequence:   entries[len(entries)-1].Sequence,
		LastTimestamp:  entries[len(entries)-1].Timestamp,
	}, nil
}

func (j *AzureJournal) writeLastEntry(ctx context.Context, topic string, entry *api.Entry) error {
	encoded, err := codec.EncodeEntry(entry)
	if err != nil {
		return err
	}

	e := entity{
		PartitionKey: lexkey.Encode(LAST_ENTRY, topic).ToHexString(),
		RowKey:       lexkey.Encode(lexkey.EndMarker).ToHexString(),
		Value:        encoded,
	}

	if _, err := j.client.UpsertEntity(ctx, mustMarshal(e), &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		return fmt.Errorf("failed to write last entry: %w", err)
	}
	return nil
}

func (j *AzureJournal) updateInventory(ctx context.Context, topic string) error {
	topicKey := lexkey.Encode(api.INVENTORY, api.TOPICS, topic).ToHexString()

	if _, ok := j.cache.Get(topicKey); ok {
		return nil
	}

	if _, err := j.client.UpsertEntity(ctx, mustMarshal(entity{
		PartitionKey: topicKey,
		RowKey:       topic,
	}), &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return fmt.Errorf("failed to update topic inventory: %w", err)
	}

	j.cache.Set(topicKey, struct{}{})
	return nil
}

func (j *AzureJournal) createTableIfNotExists(ctx context.Context) error {
	_, err := j.client.CreateTable(ctx, &aztables.CreateTableOptions{})
	if err == nil {
		return nil
	}

	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) && responseErr.ErrorCode == string(aztables.TableAlreadyExists) {
		return nil
	}

	return fmt.Errorf("failed to create table: %w", err)
}

// Private Helper Functions

func createEntries(chunk enumerators.Enumerator[*api.Record], topic string, lastSeq uint64) ([]*api.Entry, error) {
	ts := timestamp.GetTimestamp()
	enumerator := enumerators.Map(chunk, func(r *api.Record) (*api.Entry, error) {
		lastSeq++
		if r.Sequence != lastSeq {
			return nil, api.ERR_SEQUENCE_MISMATCH
		}
		return &api.Entry{
			Topic:     topic,
			Sequence:  r.Sequence,
			Timestamp: ts,
			Payload:   r.Payload,
			Metadata:  r.Metadata,
		}, nil
	})
	return enumerators.ToSlice(enumerator)
}

func decodeEntry(value []byte) (*api.Entry, error) {
	entry := &api.Entry{}
	if err := codec.DecodeEntry(value, entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return entry, nil
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ResourceNotFound")
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Conflict") ||
		strings.Contains(errStr, "PreconditionFailed") ||
		strings.Contains(errStr, "ServiceUnavailable") ||
		strings.Contains(errStr, "429")
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal: %v", err))
	}
	return data
}

func buildQuery(lower, upper string) string {
	return fmt.Sprintf("PartitionKey ge '%s' and PartitionKey le '%s'", lower, upper)
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

func ptr[T any](v T) *T {
	return &v
}
