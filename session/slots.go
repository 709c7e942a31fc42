package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"xmixing/store"
)

// Slot names shared by every storage backend.
const (
	UserSlot  = "user"
	TokenSlot = "token"
)

// ErrCorruptSlot is returned by Slots.Get when a stored value cannot be read back.
var ErrCorruptSlot = errors.New("session: corrupt slot")

// Slots is durable storage for the serialized identity and credential.
// SetPair and Clear must write both slots together.
type Slots interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
	SetPair(ctx context.Context, user, token string) error
	Clear(ctx context.Context) error
}

// SQLSlots keeps the slots in the station database.
type SQLSlots struct {
	db *store.DB
}

func NewSQLSlots(db *store.DB) *SQLSlots {
	return &SQLSlots{db: db}
}

func (s *SQLSlots) Get(ctx context.Context, name string) (string, bool, error) {
	slot, err := s.db.GetSlot(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return slot.Value, true, nil
}

func (s *SQLSlots) SetPair(ctx context.Context, user, token string) error {
	return s.db.SetSlots(ctx, map[string]string{UserSlot: user, TokenSlot: token})
}

func (s *SQLSlots) Clear(ctx context.Context) error {
	return s.db.DeleteSlots(ctx, UserSlot, TokenSlot)
}

// MemorySlots is process-local storage, used by headless runs and tests.
type MemorySlots struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{values: make(map[string]string)}
}

func (m *MemorySlots) Get(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *MemorySlots) SetPair(_ context.Context, user, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[UserSlot] = user
	m.values[TokenSlot] = token
	return nil
}

func (m *MemorySlots) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, UserSlot)
	delete(m.values, TokenSlot)
	return nil
}

// Set writes a single slot. Only tests need to break the pairing.
func (m *MemorySlots) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Len returns the number of populated slots.
func (m *MemorySlots) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
