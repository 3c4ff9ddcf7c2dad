package trust

import (
	"time"

	"github.com/example/trust-ledger/internal/money"
)

// Config carries the financially material knobs of the ledger engine.
type Config struct {
	// MaxTransactionAmount is the fraud guard-rail ceiling per transaction.
	MaxTransactionAmount money.Amount

	// ReconciliationEpsilon is the tolerated |bank - system| difference.
	ReconciliationEpsilon money.Amount

	// CriticalDiscrepancyThreshold escalates a disputed reconciliation to a
	// critical flag.
	CriticalDiscrepancyThreshold money.Amount

	// ReconciliationInterval schedules the next reconciliation due date.
	ReconciliationInterval time.Duration

	// MinimumHoldingDays is the floor below which no interest accrues,
	// avoiding micro-interest churn.
	MinimumHoldingDays int

	// InterestMinimumPayout is the smallest interest amount worth posting.
	InterestMinimumPayout money.Amount

	// AllowPooledDebits permits a client sub-ledger to go negative while the
	// account-level pool still covers the debit. Off by default: this is a
	// commingling risk, and every use is flagged for audit.
	AllowPooledDebits bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTransactionAmount:         money.FromFloat(10_000_000),
		ReconciliationEpsilon:        money.FromFloat(0.01),
		CriticalDiscrepancyThreshold: money.FromFloat(10_000),
		ReconciliationInterval:       7 * 24 * time.Hour,
		MinimumHoldingDays:           30,
		InterestMinimumPayout:        money.FromFloat(1.00),
		AllowPooledDebits:            false,
	}
}
