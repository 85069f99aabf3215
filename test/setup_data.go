package test

import (
	"fmt"
	"testing"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/obskit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type TestHarness struct {
	obskit.Client
}

func setupTopicData(t *testing.T, hostID uuid.UUID, client obskit.Client) {
	ctx := t.Context()

	for i := range 5 {
		topic, records := fmt.Sprintf("topic%d", i), generateRange(0, 53)
		results := client.Publish(ctx, hostID, topic, records)
		err := enumerators.Consume(results)
		require.NoError(t, err)
	}
}

func generateRange(seed, count int) enumerators.Enumerator[*obskit.Record] {
	return enumerators.Range(seed, count, func(i int) *obskit.Record {
		return &obskit.Record{
			Sequence: uint64(i + 1),
			Payload:  []byte(fmt.Sprintf("test data %d", i+1)),
		}
	})
}

// continueRange produces records that extend a topic past an existing
// last sequence.
func continueRange(last uint64, count int) enumerators.Enumerator[*obskit.Record] {
	return enumerators.Range(0, count, func(i int) *obskit.Record {
		return &obskit.Record{
			Sequence: last + uint64(i+1),
			Payload:  []byte(fmt.Sprintf("test data %d", last+uint64(i+1))),
		}
	})
}
