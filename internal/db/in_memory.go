package db

import (
	"context"
	"sync"

	"github.com/airenas/jira-case-importer/internal/domain"
)

// MemoryStore is the in-memory CaseManager/TokenManager used in tests
type MemoryStore struct {
	cases map[string][]domain.CaseRow
	token *domain.Token

	lock sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases: make(map[string][]domain.CaseRow),
	}
}

// SaveCases implements CaseManager
func (m *MemoryStore) SaveCases(ctx context.Context, issueType string, rows []domain.CaseRow) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	cp := make([]domain.CaseRow, len(rows))
	copy(cp, rows)
	m.cases[issueType] = cp
	return nil
}

// GetCases implements CaseManager
func (m *MemoryStore) GetCases(ctx context.Context, issueType string) ([]domain.CaseRow, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	rows, ok := m.cases[issueType]
	if !ok {
		return []domain.CaseRow{}, nil
	}
	cp := make([]domain.CaseRow, len(rows))
	copy(cp, rows)
	return cp, nil
}

// DeleteCases implements CaseManager
func (m *MemoryStore) DeleteCases(ctx context.Context, issueType string) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := len(m.cases[issueType])
	delete(m.cases, issueType)
	return n, nil
}

// SaveToken implements TokenManager
func (m *MemoryStore) SaveToken(ctx context.Context, token *domain.Token) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	cp := *token
	m.token = &cp
	return nil
}

// GetToken implements TokenManager
func (m *MemoryStore) GetToken(ctx context.Context) (*domain.Token, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token == nil {
		return nil, nil
	}
	cp := *m.token
	return &cp, nil
}
