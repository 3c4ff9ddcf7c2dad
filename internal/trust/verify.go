package trust

import (
	"errors"
	"time"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/pkg/hashchain"
)

// VerifyChain walks the transaction history once, recomputing every digest
// and checking linkage. Read-only: a broken chain is reported with its
// index, never repaired.
func VerifyChain(account *TrustAccount) VerificationResult {
	entries := make([]hashchain.Entry, len(account.Transactions))
	for i, tx := range account.Transactions {
		entries[i] = tx
	}

	result := VerificationResult{Valid: true, Entries: len(entries), BrokenIndex: -1}
	if err := hashchain.Verify(entries); err != nil {
		result.Valid = false
		var broken *hashchain.BrokenChainError
		if errors.As(err, &broken) {
			result.BrokenIndex = broken.Index
			result.Reason = broken.Reason
		} else {
			result.Reason = err.Error()
		}
	}
	return result
}

// GenerateAuditReport computes a read-only compliance report over [start,
// end]: opening balance, net change, per-type totals, distinct client and
// matter counts, the reconciliation and flag history intersecting the
// window, and the current chain verdict.
func GenerateAuditReport(account *TrustAccount, start, end time.Time) *AuditReport {
	report := &AuditReport{
		AccountID:      account.ID,
		Start:          start,
		End:            end,
		OpeningBalance: money.Zero(),
		NetChange:      money.Zero(),
		TotalsByType:   make(map[TransactionType]money.Amount),
		GeneratedAt:    time.Now().UTC(),
	}

	clients := make(map[string]struct{})
	matters := make(map[string]struct{})

	for _, tx := range account.Transactions {
		delta := tx.Amount
		if tx.Direction == DirectionDebit {
			delta = tx.Amount.Neg()
		}
		if tx.Timestamp.Before(start) {
			report.OpeningBalance = report.OpeningBalance.Add(delta)
			continue
		}
		if tx.Timestamp.After(end) {
			continue
		}
		report.NetChange = report.NetChange.Add(delta)
		report.TransactionCount++

		total, ok := report.TotalsByType[tx.Type]
		if !ok {
			total = money.Zero()
		}
		report.TotalsByType[tx.Type] = total.Add(tx.Amount)

		clients[tx.ClientID] = struct{}{}
		matters[tx.MatterReference] = struct{}{}
	}

	report.ClosingBalance = report.OpeningBalance.Add(report.NetChange)
	report.DistinctClients = len(clients)
	report.DistinctMatters = len(matters)

	for _, rec := range account.Reconciliations {
		if !rec.VerifiedAt.Before(start) && !rec.VerifiedAt.After(end) {
			report.Reconciliations = append(report.Reconciliations, rec)
		}
	}
	for _, flag := range account.Flags {
		if !flag.RaisedAt.Before(start) && !flag.RaisedAt.After(end) {
			report.Flags = append(report.Flags, flag)
		}
	}

	report.ChainValid = VerifyChain(account).Valid
	return report
}
