package tenant

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used by unit tests and by the
// sandbox/dev run mode when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Tenant
	byAPI   map[string]string // apiKeyHash -> tenantID
	byOAuth map[string]string // clientID|secretHash -> tenantID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Tenant),
		byAPI:   make(map[string]string),
		byOAuth: make(map[string]string),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, t Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = t
	if t.APIKeyHash != "" {
		s.byAPI[t.APIKeyHash] = t.ID
	}
	if t.OAuthClientID != "" {
		s.byOAuth[t.OAuthClientID+"|"+t.OAuthClientSecretHash] = t.ID
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, tenantID string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[tenantID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) GetByAPIKeyHash(_ context.Context, apiKeyHash string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAPI[apiKeyHash]
	if !ok {
		return nil, nil
	}
	t := s.byID[id]
	return &t, nil
}

func (s *MemoryStore) GetByClientCredentials(_ context.Context, clientID, clientSecretHash string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOAuth[clientID+"|"+clientSecretHash]
	if !ok {
		return nil, nil
	}
	t := s.byID[id]
	return &t, nil
}
