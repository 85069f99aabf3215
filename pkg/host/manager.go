package host

import (
	"context"
	"sync"

	"github.com/fgrzl/messaging"
	"github.com/fgrzl/obskit/pkg/storage"
	"github.com/google/uuid"
)

// Manager manages per-host journal instances.
type Manager interface {
	GetOrCreate(ctx context.Context, hostID uuid.UUID) (Host, error)
	Remove(ctx context.Context, hostID uuid.UUID)
	Close()
}

type hostManager struct {
	mu             sync.RWMutex
	busFactory     messaging.MessageBusFactory
	journalFactory storage.JournalFactory
	hosts          map[uuid.UUID]Host
	closeOnce      sync.Once
}

// NewManager creates a new Manager with the given factories.
func NewManager(busFactory messaging.MessageBusFactory, journalFactory storage.JournalFactory) Manager {
	return &hostManager{
		busFactory:     busFactory,
		journalFactory: journalFactory,
		hosts:          make(map[uuid.UUID]Host),
	}
}

func (m *hostManager) GetOrCreate(ctx context.Context, hostID uuid.UUID) (Host, error) {
	m.mu.RLock()
	h, ok := m.hosts[hostID]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if h, ok := m.hosts[hostID]; ok {
		return h, nil
	}

	journal, err := m.journalFactory.NewJournal(ctx, hostID)
	if err != nil {
		return nil, err
	}

	h = NewHost(hostID, journal, m.busFactory)
	m.hosts[hostID] = h
	return h, nil
}

func (m *hostManager) Remove(ctx context.Context, hostID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.hosts[hostID]; ok {
		h.Close() // ignore error, optionally log it
		delete(m.hosts, hostID)
	}
}

func (m *hostManager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, h := range m.hosts {
			h.Close()
		}
	})
}
