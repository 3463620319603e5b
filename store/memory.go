package store

import (
	"context"
	"sync"

	"github.com/vitwit/paygate/types"
)

// Memory implements EntitlementStore and Catalog in process memory.
// Used by tests and single-node setups; the mutex gives TryGrant the
// same exactly-once contract the Postgres UNIQUE index does.
type Memory struct {
	mu            sync.Mutex
	byTxHash      map[string]types.EntitlementRecord
	byPrincipal   map[string][]types.EntitlementRecord
	subscriptions map[string]types.SubscriptionState
	videos        map[string]types.Video
	tiers         map[string]types.SubscriptionTier
}

var (
	_ EntitlementStore = (*Memory)(nil)
	_ Catalog          = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		byTxHash:      make(map[string]types.EntitlementRecord),
		byPrincipal:   make(map[string][]types.EntitlementRecord),
		subscriptions: make(map[string]types.SubscriptionState),
		videos:        make(map[string]types.Video),
		tiers:         make(map[string]types.SubscriptionTier),
	}
}

func (m *Memory) HasGrant(_ context.Context, txHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byTxHash[txHash]
	return ok, nil
}

func (m *Memory) TryGrant(_ context.Context, record types.EntitlementRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTxHash[record.TxHash]; ok {
		return false, nil
	}
	m.byTxHash[record.TxHash] = record
	m.byPrincipal[record.PrincipalID] = append(m.byPrincipal[record.PrincipalID], record)
	return true, nil
}

func (m *Memory) HasEntitlement(_ context.Context, principalID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byPrincipal[principalID] {
		if rec.ItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) GetSubscription(_ context.Context, principalID string) (*types.SubscriptionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.subscriptions[principalID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return &state, nil
}

func (m *Memory) SetSubscription(_ context.Context, principalID string, state types.SubscriptionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[principalID] = state
	return nil
}

// AddVideo seeds the catalog.
func (m *Memory) AddVideo(v types.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[v.ID] = v
}

// AddTier seeds the catalog.
func (m *Memory) AddTier(t types.SubscriptionTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[t.ID] = t
}

func (m *Memory) GetVideo(_ context.Context, id string) (*types.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *Memory) GetTier(_ context.Context, id string) (*types.SubscriptionTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}
