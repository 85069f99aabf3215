package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/fgrzl/obskit/internal/cache"
	"github.com/fgrzl/obskit/pkg/storage"
	"github.com/google/uuid"
)

const (
	minTableNameLength = 3
	maxTableNameLength = 63

	CacheTTL             = 97 * time.Second
	CacheCleanupInterval = 59 * time.Second
)

// AzureJournalOptions configures the Azure Table Storage client.
type AzureJournalOptions struct {
	Prefix                    string
	Endpoint                  string
	UseDefaultAzureCredential bool
	SharedKeyCredential       *aztables.SharedKeyCredential
	AllowInsecureHTTP         bool // For local Azurite testing
}

// JournalFactory creates Azure-backed journals using shared credentials.
type JournalFactory struct {
	options AzureJournalOptions
	cred    azcore.TokenCredential
	once    sync.Once
	initErr error
}

// NewJournalFactory validates options and initializes credentials.
func NewJournalFactory(options AzureJournalOptions) (*JournalFactory, error) {
	if options.Endpoint == "" {
		return nil, errors.New("azure journal factory: endpoint is required")
	}
	if !options.UseDefaultAzureCredential && options.SharedKeyCredential == nil {
		return nil, errors.New("azure journal factory: credential strategy is required")
	}

	f := &JournalFactory{options: options}
	f.once.Do(func() {
		f.cred, f.initErr = f.initCredential()
	})
	if f.initErr != nil {
		return nil, fmt.Errorf("azure journal factory: credential initialization failed: %w", f.initErr)
	}
	return f, nil
}

// NewJournal returns a new Azure-backed journal scoped to a sanitized table name.
func (f *JournalFactory) NewJournal(ctx context.Context, hostID uuid.UUID) (storage.Journal, error) {
	if f.initErr != nil {
		return nil, fmt.Errorf("azure journal factory: credentials not initialized: %w", f.initErr)
	}

	tableName := sanitizeTableName(f.options.Prefix + strings.ReplaceAll(hostID.String(), "-", ""))
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(f.options.Endpoint, "/"), tableName)

	clientOpts := aztables.ClientOptions{}
	var client *aztables.Client
	var err error

	if f.options.SharedKeyCredential != nil {
		// SharedKey path (used for Azurite or explicit keys)
		client, err = aztables.NewClientWithSharedKey(url, f.options.SharedKeyCredential, &clientOpts)
	} else {
		// TokenCredential path (used for DefaultAzureCredential)
		client, err = aztables.NewClient(url, f.cred, &clientOpts)
	}
	if err != nil {
		return nil, err
	}

	cache := cache.NewExpiringCache(CacheTTL, CacheCleanupInterval)
	return NewAzureJournal(ctx, client, cache)
}

// initCredential initializes and returns a shared TokenCredential if needed.
func (f *JournalFactory) initCredential() (azcore.TokenCredential, error) {
	if f.options.SharedKeyCredential != nil {
		return nil, nil // Not used in this path
	}
	if f.options.UseDefaultAzureCredential {
		return azidentity.NewDefaultAzureCredential(nil)
	}
	return nil, errors.New("azure journal factory: no valid credential strategy configured")
}

// sanitizeTableName ensures the table name conforms to Azure naming rules.
func sanitizeTableName(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(maxTableNameLength)

	// Start with a letter
	if isLetter(name[0]) {
		b.WriteByte(name[0])
	} else {
		b.WriteByte('T')
	}

	for i := 1; i < len(name); i++ {
		if isAlphanumeric(name[i]) {
			b.WriteByte(name[i])
		}
	}

	sanitized := b.String()
	for len(sanitized) < minTableNameLength {
		sanitized += "0"
	}
	if len(sanitized) > maxTableNameLength {
		sanitized = sanitized[:maxTableNameLength]
	}

	return sanitized
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isAlphanumeric(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9')
}
