package trust

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/trust-ledger/internal/money"
)

// daysPerYear is the ACT/365-fixed day-count denominator. Chosen over
// act/act because it is the convention the payout figures in client
// statements were audited against.
var daysPerYear = decimal.NewFromInt(365)

// InterestEngine computes and posts interest owed to eligible client
// sub-ledgers. Postings go through the transaction processor so they are
// hash-chained and auditable like any other movement.
type InterestEngine struct {
	cfg       Config
	processor *Processor
	clock     func() time.Time
}

// NewInterestEngine creates an accrual engine that posts through proc.
func NewInterestEngine(cfg Config, proc *Processor) *InterestEngine {
	return &InterestEngine{cfg: cfg, processor: proc, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source, for tests.
func (e *InterestEngine) WithClock(clock func() time.Time) *InterestEngine {
	e.clock = clock
	return e
}

// Calculate computes interest for every eligible sub-ledger without posting
// anything. Eligibility: active status, positive balance, holding period of
// at least the configured floor, and a computed amount meeting the minimum
// payout threshold.
func (e *InterestEngine) Calculate(account *TrustAccount) *InterestReport {
	now := e.clock()
	report := &InterestReport{
		AccountID:    account.ID,
		AccruedAt:    now,
		TotalAccrued: money.Zero(),
	}

	rate := account.Interest.AnnualRate
	if !rate.IsPositive() {
		return report
	}

	for _, sub := range account.SubLedgers {
		if sub.Status != SubLedgerActive || !sub.Balance.IsPositive() {
			continue
		}
		days := e.holdingDays(account, sub, now)
		line := InterestLine{
			ClientID:        sub.ClientID,
			MatterReference: sub.MatterReference,
			Principal:       sub.Balance,
			AnnualRate:      rate,
			HoldingDays:     days,
			Interest:        money.Zero(),
		}
		if days >= e.cfg.MinimumHoldingDays {
			// principal * rate * days/365, rounded once at the end.
			proRata := rate.Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
			line.Interest = sub.Balance.MulRate(proRata)
		}
		minimum := e.cfg.InterestMinimumPayout
		if account.Interest.MinimumPayout.IsPositive() {
			minimum = account.Interest.MinimumPayout
		}
		if line.Interest.LessThan(minimum) {
			line.Interest = money.Zero()
		}
		report.Lines = append(report.Lines, line)
	}
	return report
}

// Accrue calculates and posts the payable set as interest transactions,
// updating the cumulative interestEarned counter.
func (e *InterestEngine) Accrue(account *TrustAccount, actor ActorContext) (*InterestReport, error) {
	report := e.Calculate(account)
	now := report.AccruedAt

	for i := range report.Lines {
		line := &report.Lines[i]
		if !line.Interest.IsPositive() {
			continue
		}
		result, err := e.processor.Process(account, TransactionRequest{
			Type:            TypeInterest,
			Purpose:         "interest_accrual",
			Amount:          line.Interest,
			ClientID:        line.ClientID,
			MatterReference: line.MatterReference,
			Description: fmt.Sprintf("interest on %s at %s%% over %d days",
				line.Principal, line.AnnualRate.Mul(decimal.NewFromInt(100)), line.HoldingDays),
		}, actor)
		if err != nil {
			return report, fmt.Errorf("failed to post interest for client %s: %w", line.ClientID, err)
		}
		line.Posted = true
		line.TransactionID = result.TransactionID
		report.TotalAccrued = report.TotalAccrued.Add(line.Interest)

		if sub := account.findSubLedger(line.ClientID, line.MatterReference); sub != nil {
			sub.LastInterestAccrual = now
		}
	}

	if report.TotalAccrued.IsPositive() {
		account.InterestEarned = account.InterestEarned.Add(report.TotalAccrued)
		account.appendAudit("interest.accrued",
			fmt.Sprintf("posted %s across %d sub-ledgers", report.TotalAccrued, len(report.Lines)),
			actor, now)
	}
	return report, nil
}

// holdingDays counts whole days since the last qualifying activity: the
// later of the last transaction and the last accrual, falling back to the
// account opening date.
func (e *InterestEngine) holdingDays(account *TrustAccount, sub *ClientSubLedger, now time.Time) int {
	since := sub.LastTransaction
	if since.IsZero() {
		since = account.OpenedAt
	}
	if sub.LastInterestAccrual.After(since) {
		since = sub.LastInterestAccrual
	}
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return int(now.Sub(since).Hours() / 24)
}
