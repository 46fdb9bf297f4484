package inmem

import (
	"context"
	"sync"

	"academy/internal/auth"
)

// OperatorStore implements auth.OperatorStore in memory.
type OperatorStore struct {
	mu    sync.RWMutex
	byID  map[string]auth.Operator
	names map[string]string
}

func NewOperatorStore() *OperatorStore {
	return &OperatorStore{byID: map[string]auth.Operator{}, names: map[string]string{}}
}

var _ auth.OperatorStore = (*OperatorStore)(nil)

func (m *OperatorStore) CreateOperator(_ context.Context, op auth.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[op.Username]; ok {
		return auth.ErrUsernameTaken
	}
	m.byID[op.ID] = op
	m.names[op.Username] = op.ID
	return nil
}

func (m *OperatorStore) OperatorByUsername(_ context.Context, username string) (*auth.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[username]
	if !ok {
		return nil, nil
	}
	op := m.byID[id]
	return &op, nil
}

func (m *OperatorStore) OperatorByID(_ context.Context, id string) (*auth.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

// Deactivate flips an operator to inactive.
func (m *OperatorStore) Deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.byID[id]; ok {
		op.Active = false
		m.byID[id] = op
	}
}
