package trust

import (
	"fmt"
	"time"

	"github.com/example/trust-ledger/internal/money"
)

// Reconciler compares the ledger's computed balance against an externally
// supplied bank balance. It never touches transaction history: it reads the
// balance at a single consistent point and appends a reconciliation record
// plus, conditionally, a compliance flag.
type Reconciler struct {
	cfg   Config
	clock func() time.Time
}

// NewReconciler creates a reconciliation engine.
func NewReconciler(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source, for tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Reconcile runs one reconciliation against the aggregate inside the store
// scope, so the system balance snapshot cannot move mid-run.
func (r *Reconciler) Reconcile(account *TrustAccount, bankBalance money.Amount, stmt StatementMetadata, actor ActorContext) (*ReconciliationResult, error) {
	if account.Status == AccountClosed {
		return nil, NewPreconditionError(KindAccountNotActive,
			fmt.Sprintf("account %s is closed", account.ID),
			"account must not be closed")
	}

	now := r.clock()
	systemBalance := account.CurrentBalance
	discrepancy := bankBalance.Sub(systemBalance)

	record := &ReconciliationRecord{
		ID:            newID(),
		SystemBalance: systemBalance,
		BankBalance:   bankBalance,
		Discrepancy:   discrepancy,
		Statement:     stmt,
		VerifiedBy:    actor.ActorID,
		VerifiedAt:    now,
	}
	for _, tx := range r.uncoveredTransactions(account) {
		record.VerifiedTransactionIDs = append(record.VerifiedTransactionIDs, tx.ID)
	}

	overdue := !account.Compliance.NextReconciliationDue.IsZero() && now.After(account.Compliance.NextReconciliationDue)

	result := &ReconciliationResult{RecordID: record.ID}

	if discrepancy.Abs().Cmp(r.cfg.ReconciliationEpsilon) <= 0 {
		record.Status = ReconCompleted
		record.IsReconciled = true
		account.Compliance.ConsecutiveReconciliations++
		account.Compliance.ReconciliationScore = recoverScore(account.Compliance.ReconciliationScore)
	} else {
		record.Status = ReconDisputed
		record.Discrepancies = append(record.Discrepancies, DiscrepancyItem{
			Description: fmt.Sprintf("bank statement %s differs from system balance", stmt.Reference),
			Amount:      discrepancy,
		})
		account.Compliance.ConsecutiveReconciliations = 0
		account.Compliance.ReconciliationScore = decayScore(account.Compliance.ReconciliationScore,
			discrepancy.Abs(), r.cfg.CriticalDiscrepancyThreshold)

		severity := SeverityHigh
		if discrepancy.Abs().Cmp(r.cfg.CriticalDiscrepancyThreshold) >= 0 {
			severity = SeverityCritical
		}
		flag := account.raiseFlag("reconciliation_discrepancy", severity,
			fmt.Sprintf("reconciliation %s found discrepancy %s against statement %s",
				record.ID, discrepancy, stmt.Reference), now)
		result.FlagRaised = flag.ID
	}

	if overdue {
		account.raiseFlag("reconciliation_overdue", SeverityMedium,
			fmt.Sprintf("reconciliation ran %s after it was due", now.Sub(account.Compliance.NextReconciliationDue).Round(time.Hour)), now)
	}

	account.Compliance.LastReconciliation = now
	account.Compliance.NextReconciliationDue = now.Add(r.cfg.ReconciliationInterval)
	account.Reconciliations = append(account.Reconciliations, record)

	account.appendAudit("reconciliation.run",
		fmt.Sprintf("status=%s discrepancy=%s statement=%s", record.Status, discrepancy, stmt.Reference),
		actor, now)

	result.Status = record.Status
	result.IsReconciled = record.IsReconciled
	result.Discrepancy = discrepancy
	result.Score = account.Compliance.ReconciliationScore
	return result, nil
}

// uncoveredTransactions lists the completed transactions not covered by a
// prior reconciliation run.
func (r *Reconciler) uncoveredTransactions(account *TrustAccount) []*LedgerTransaction {
	since := time.Time{}
	if n := len(account.Reconciliations); n > 0 {
		since = account.Reconciliations[n-1].VerifiedAt
	}
	var out []*LedgerTransaction
	for _, tx := range account.Transactions {
		if tx.Timestamp.After(since) {
			out = append(out, tx)
		}
	}
	return out
}

// recoverScore moves the compliance score halfway back toward 100 on a
// clean run.
func recoverScore(score float64) float64 {
	if score <= 0 {
		score = 0
	}
	next := score + (100-score)/2
	if next > 100 {
		next = 100
	}
	return next
}

// decayScore halves the score on a dispute and applies an extra penalty
// proportional to the discrepancy magnitude relative to the critical
// threshold, floored at zero.
func decayScore(score float64, magnitude, threshold money.Amount) float64 {
	next := score / 2
	if threshold.IsPositive() {
		ratio, _ := magnitude.Decimal().Div(threshold.Decimal()).Float64()
		next -= 10 * ratio
	}
	if next < 0 {
		next = 0
	}
	return next
}
