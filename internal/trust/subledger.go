package trust

import (
	"fmt"
	"time"

	"github.com/example/trust-ledger/internal/money"
)

// findSubLedger locates the sub-ledger for a (client, matter) pair.
func (a *TrustAccount) findSubLedger(clientID, matterReference string) *ClientSubLedger {
	for _, s := range a.SubLedgers {
		if s.ClientID == clientID && s.MatterReference == matterReference {
			return s
		}
	}
	return nil
}

// ensureSubLedger returns the sub-ledger for a (client, matter) pair,
// creating it on first use.
func (a *TrustAccount) ensureSubLedger(clientID, clientName, matterReference string, at time.Time) *ClientSubLedger {
	if s := a.findSubLedger(clientID, matterReference); s != nil {
		if s.ClientName == "" && clientName != "" {
			s.ClientName = clientName
		}
		return s
	}
	s := &ClientSubLedger{
		ClientID:        clientID,
		ClientName:      clientName,
		MatterReference: matterReference,
		Balance:         money.Zero(),
		Pending:         money.Zero(),
		Status:          SubLedgerActive,
		LastTransaction: at,
	}
	a.SubLedgers = append(a.SubLedgers, s)
	return s
}

// apply moves the sub-ledger balance by a signed delta and keeps the
// last-transaction pointer and counter in step with it. The caller has
// already decided the debit is allowed.
func (s *ClientSubLedger) apply(delta money.Amount, txID string, at time.Time) money.Amount {
	s.Balance = s.Balance.Add(delta)
	s.LastTransaction = at
	s.LastTransactionID = txID
	s.TransactionCount++
	if s.Status == SubLedgerInactive {
		s.Status = SubLedgerActive
	}
	return s.Balance
}

// canDebit reports whether a debit keeps this sub-ledger non-negative.
func (s *ClientSubLedger) canDebit(amount money.Amount) bool {
	return !s.Balance.Sub(amount).IsNegative()
}

// close marks the sub-ledger closed. It requires a zero balance and no
// pending amount.
func (s *ClientSubLedger) close() error {
	if !s.Balance.IsZero() {
		return NewPreconditionError(KindAccountHasBalance,
			fmt.Sprintf("sub-ledger for client %s matter %s holds %s", s.ClientID, s.MatterReference, s.Balance),
			"sub-ledger balance must be zero")
	}
	if !s.Pending.IsZero() {
		return NewPreconditionError(KindPendingTransactions,
			fmt.Sprintf("sub-ledger for client %s matter %s has %s pending", s.ClientID, s.MatterReference, s.Pending),
			"sub-ledger pending amount must be zero")
	}
	s.Status = SubLedgerClosed
	return nil
}
