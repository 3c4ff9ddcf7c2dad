package trust

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store persists trust account aggregates. Each aggregate — balances,
// sub-ledgers, transaction chain, reconciliations, flags, audit trail — is
// written as one atomic unit.
type Store interface {
	// Create persists a new account. Fails with KindConflict if the id exists.
	Create(ctx context.Context, account *TrustAccount) error

	// Get returns a private snapshot of the account. Callers may read it
	// freely; mutations never become visible.
	Get(ctx context.Context, id string) (*TrustAccount, error)

	// Update is the named transactional scope every mutating operation must
	// acquire. It loads the aggregate, applies fn to a private copy, and
	// commits the result atomically with a version check. If fn returns an
	// error or the commit fails, no mutation becomes visible.
	Update(ctx context.Context, id string, fn func(*TrustAccount) error) (*TrustAccount, error)
}

// encodeAccount serializes an aggregate for storage.
func encodeAccount(account *TrustAccount) ([]byte, error) {
	doc, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account %s: %w", account.ID, err)
	}
	return doc, nil
}

// decodeAccount restores an aggregate from storage.
func decodeAccount(doc []byte) (*TrustAccount, error) {
	var account TrustAccount
	if err := json.Unmarshal(doc, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}
