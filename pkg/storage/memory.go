package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("no run recorded")

// Record is the outcome of one naming run.
type Record struct {
	CorrelationID string            `json:"correlation_id"`
	Chain         string            `json:"chain"`
	Contract      string            `json:"contract"`
	Name          string            `json:"name"`
	ContractType  string            `json:"contract_type"`
	Transactions  map[string]string `json:"transactions"`
	Notes         []string          `json:"notes,omitempty"`
	Error         string            `json:"error,omitempty"`
	ExplorerURL   string            `json:"explorer_url,omitempty"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// Key identifies a record. Contract addresses are compared case-insensitively.
func (r Record) Key() string {
	return Key(r.Chain, r.Contract)
}

func Key(chain, contract string) string {
	return chain + ":" + strings.ToLower(contract)
}

// Journal keeps the last run per (chain, contract). It is informational only;
// naming decisions are always taken from on-chain state.
type Journal interface {
	Save(ctx context.Context, rec Record) error
	// Load returns ErrNotFound when nothing was recorded.
	Load(ctx context.Context, chain, contract string) (*Record, error)
	Close() error
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	data   map[string]Record
	prefix string
	mu     sync.RWMutex
}

// NewMemoryStore initializes a new in-memory journal.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]Record),
		prefix: prefix,
	}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.prefix+rec.Key()] = rec
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, chain, contract string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[m.prefix+Key(chain, contract)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Close implements the Journal interface.
func (m *MemoryStore) Close() error {
	return nil
}
