package trust

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps aggregates as serialized documents in memory. Used by
// tests and single-process development; it honors the same atomicity
// contract as the SQL stores because mutations happen on decoded copies and
// only replace the stored document on success.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// CommitHook, when set, runs just before a mutated aggregate is stored.
	// Returning an error aborts the commit, leaving the stored document
	// untouched. Tests use it to simulate persistence failure mid-scope.
	CommitHook func(*TrustAccount) error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Create(ctx context.Context, account *TrustAccount) error {
	doc, err := encodeAccount(account)
	if err != nil {
		return WrapPersistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[account.ID]; exists {
		return NewError(KindConflict, fmt.Sprintf("account %s already exists", account.ID))
	}
	s.docs[account.ID] = doc
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*TrustAccount, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
	}
	account, err := decodeAccount(doc)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	return account, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*TrustAccount) error) (*TrustAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("account %s not found", id))
	}
	account, err := decodeAccount(doc)
	if err != nil {
		return nil, WrapPersistence(err)
	}

	if err := fn(account); err != nil {
		return nil, err
	}
	account.Version++

	if s.CommitHook != nil {
		if err := s.CommitHook(account); err != nil {
			return nil, WrapPersistence(err)
		}
	}

	updated, err := encodeAccount(account)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	s.docs[id] = updated
	return account, nil
}
