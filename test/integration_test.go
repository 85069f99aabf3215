package test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/obskit"
	"github.com/fgrzl/obskit/pkg/auth/jwtkit"
	"github.com/fgrzl/obskit/pkg/host"
	"github.com/fgrzl/obskit/pkg/storage"
	"github.com/fgrzl/obskit/pkg/storage/azure"
	"github.com/fgrzl/obskit/pkg/storage/pebble"
	"github.com/fgrzl/obskit/pkg/transport/wskit"
	"github.com/fgrzl/obskit/pkg/web"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("top-secret")

func newTestHarness(t *testing.T, factory storage.JournalFactory) *TestHarness {

	validator := &jwtkit.HMAC256Validator{
		Secret: secret,
	}

	manager := host.NewManager(nil, factory)

	router := web.NewServer(validator, manager)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		manager.Close()
	})

	httpClient := server.Client()

	resp, err := httpClient.Get(server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	signer := jwtkit.HMAC256Signer{
		Secret: secret,
	}
	token, err := signer.CreateToken(jwt.MapClaims{"scopes": "obskit::*"}, time.Minute)
	require.NoError(t, err)

	url, err := url.Parse(server.URL)
	require.NoError(t, err)

	addr := "ws://" + url.Host + "/"
	bus := wskit.NewWebSocketBus(addr, token)
	client := obskit.NewClient(bus)
	t.Cleanup(client.Close)

	return &TestHarness{
		Client: client,
	}
}

func azureTestHarness(t *testing.T) *TestHarness {
	// Default Azurite configuration for local testing
	accountName := "devstoreaccount1"
	accountKey := "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	endpoint := "http://127.0.0.1:10002/devstoreaccount1"

	conn, err := net.DialTimeout("tcp", "127.0.0.1:10002", 250*time.Millisecond)
	if err != nil {
		t.Skip("azurite is not running")
	}
	conn.Close()

	credential, err := azure.NewSharedKeyCredential(accountName, accountKey)
	require.NoError(t, err)

	factory, err := azure.NewJournalFactory(azure.AzureJournalOptions{
		Prefix:              "t" + uuid.NewString()[:8],
		Endpoint:            endpoint,
		SharedKeyCredential: credential,
		AllowInsecureHTTP:   true,
	})
	require.NoError(t, err)

	return newTestHarness(t, factory)
}

func pebbleTestHarness(t *testing.T) *TestHarness {
	factory, err := pebble.NewJournalFactory(&pebble.PebbleJournalOptions{
		Path: t.TempDir(),
	})
	require.NoError(t, err)

	return newTestHarness(t, factory)
}

func configurations(t *testing.T) map[string]*TestHarness {
	return map[string]*TestHarness{
		"azure":  azureTestHarness(t),
		"pebble": pebbleTestHarness(t),
	}
}

func TestPublish(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should publish "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()

			// Act
			results := h.Client.Publish(ctx, hostID, "topic0", generateRange(0, 5))
			statuses, err := enumerators.ToSlice(results)

			// Assert
			assert.NoError(t, err)
			assert.Len(t, statuses, 1)
			assert.Equal(t, uint64(1), statuses[0].FirstSequence)
			assert.Equal(t, uint64(5), statuses[0].LastSequence)
		})
	}
}

func TestGetTopics(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should get topics "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			setupTopicData(t, hostID, h.Client)

			// Act
			enumerator := h.Client.GetTopics(ctx, hostID)
			topics, err := enumerators.ToSlice(enumerator)

			// Assert
			assert.NoError(t, err)
			assert.ElementsMatch(t, []string{"topic0", "topic1", "topic2", "topic3", "topic4"}, topics)
		})
	}
}

func TestGetStatus(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should get host status "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			setupTopicData(t, hostID, h.Client)

			// Act
			status, err := h.Client.GetStatus(ctx, hostID)

			// Assert
			assert.NoError(t, err)
			assert.Equal(t, hostID, status.HostID)
			assert.Equal(t, 5, status.TopicCount)
		})
	}
}

func TestReplay(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should replay a bounded range "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			setupTopicData(t, hostID, h.Client)

			// Act
			results := h.Client.Replay(ctx, hostID, &obskit.Replay{
				Topic:       "topic0",
				MinSequence: 10,
				MaxSequence: 20,
			})
			entries, err := enumerators.ToSlice(results)

			// Assert
			assert.NoError(t, err)
			require.Len(t, entries, 10)
			assert.Equal(t, uint64(11), entries[0].Sequence)
			assert.Equal(t, uint64(20), entries[9].Sequence)
		})
	}
}

func TestSubscribeReplaysThenStreams(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should replay then stream live entries "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			require.NoError(t, enumerators.Consume(h.Client.Publish(ctx, hostID, "topic0", generateRange(0, 3))))

			received := make(chan *obskit.Entry, 64)
			sub, err := h.Client.SubscribeToTopic(ctx, hostID, "topic0", 0, func(entry *obskit.Entry) {
				received <- entry
			})
			require.NoError(t, err)
			defer sub.Unsubscribe()

			// replayed backlog
			for i := 1; i <= 3; i++ {
				entry := awaitEntry(t, received)
				assert.Equal(t, uint64(i), entry.Sequence)
			}

			// Act
			require.NoError(t, enumerators.Consume(h.Client.Publish(ctx, hostID, "topic0", continueRange(3, 2))))

			// Assert
			assert.Equal(t, uint64(4), awaitEntry(t, received).Sequence)
			assert.Equal(t, uint64(5), awaitEntry(t, received).Sequence)
		})
	}
}

func TestSubscribeFromMinSequence(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should skip entries at or below min sequence "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			require.NoError(t, enumerators.Consume(h.Client.Publish(ctx, hostID, "topic0", generateRange(0, 10))))

			received := make(chan *obskit.Entry, 64)

			// Act
			sub, err := h.Client.SubscribeToTopic(ctx, hostID, "topic0", 7, func(entry *obskit.Entry) {
				received <- entry
			})
			require.NoError(t, err)
			defer sub.Unsubscribe()

			// Assert
			assert.Equal(t, uint64(8), awaitEntry(t, received).Sequence)
			assert.Equal(t, uint64(9), awaitEntry(t, received).Sequence)
			assert.Equal(t, uint64(10), awaitEntry(t, received).Sequence)
		})
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should stop delivery after unsubscribe "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			received := make(chan *obskit.Entry, 64)
			sub, err := h.Client.SubscribeToTopic(ctx, hostID, "topic0", 0, func(entry *obskit.Entry) {
				received <- entry
			})
			require.NoError(t, err)

			// Act
			sub.Unsubscribe()
			require.NoError(t, enumerators.Consume(h.Client.Publish(ctx, hostID, "topic0", generateRange(0, 3))))

			// Assert
			select {
			case entry := <-received:
				t.Fatalf("unexpected delivery after unsubscribe: %v", entry.Sequence)
			case <-time.After(250 * time.Millisecond):
			}
		})
	}
}

func TestClientCloseReleasesSubscriptions(t *testing.T) {
	for name, h := range configurations(t) {
		t.Run("should release all subscriptions on close "+name, func(t *testing.T) {
			// Arrange
			ctx, hostID := t.Context(), uuid.New()
			received := make(chan *obskit.Entry, 64)
			_, err := h.Client.SubscribeToTopic(ctx, hostID, "topic0", 0, func(entry *obskit.Entry) {
				received <- entry
			})
			require.NoError(t, err)

			// Act
			h.Client.Close()
			require.NoError(t, enumerators.Consume(h.Client.Publish(ctx, hostID, "topic0", generateRange(0, 3))))

			// Assert
			select {
			case entry := <-received:
				t.Fatalf("unexpected delivery after close: %v", entry.Sequence)
			case <-time.After(250 * time.Millisecond):
			}
		})
	}
}

func awaitEntry(t *testing.T, received <-chan *obskit.Entry) *obskit.Entry {
	t.Helper()
	select {
	case entry := <-received:
		return entry
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for entry")
		return nil
	}
}
