package trust

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interestAccount(t *testing.T, principal float64, rate string) (*TrustAccount, *Processor) {
	t.Helper()
	account := testAccount()
	account.Interest = InterestPolicy{
		AnnualRate:   decimal.RequireFromString(rate),
		AccrualBasis: "act/365",
	}
	p := testProcessor(DefaultConfig())
	deposit(t, p, account, principal, "client-a", "matter-1")
	return account, p
}

func TestCalculateFullYearAccrual(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(365 * 24 * time.Hour)
	})

	report := e.Calculate(account)
	require.Len(t, report.Lines, 1)

	line := report.Lines[0]
	assert.Equal(t, 365, line.HoldingDays)
	assert.Equal(t, "100000.00", line.Principal.String())
	assert.Equal(t, "2500.00", line.Interest.String())
	assert.False(t, line.Posted)
}

func TestCalculateBelowHoldingFloor(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(10 * 24 * time.Hour)
	})

	report := e.Calculate(account)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, 10, report.Lines[0].HoldingDays)
	assert.True(t, report.Lines[0].Interest.IsZero())
}

func TestCalculateBelowMinimumPayout(t *testing.T) {
	account, p := interestAccount(t, 100, "0.001")
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(365 * 24 * time.Hour)
	})

	// 100 * 0.001 = 0.10, under the 1.00 payout floor.
	report := e.Calculate(account)
	require.Len(t, report.Lines, 1)
	assert.True(t, report.Lines[0].Interest.IsZero())
}

func TestCalculateSkipsIneligibleSubLedgers(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	account.SubLedgers[0].Status = SubLedgerClosed
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(365 * 24 * time.Hour)
	})

	report := e.Calculate(account)
	assert.Empty(t, report.Lines)

	// A zero annual rate disables accrual entirely.
	account.SubLedgers[0].Status = SubLedgerActive
	account.Interest.AnnualRate = decimal.Zero
	report = e.Calculate(account)
	assert.Empty(t, report.Lines)
}

func TestAccruePostsChainedTransactions(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(365 * 24 * time.Hour)
	})

	report, err := e.Accrue(account, testActor())
	require.NoError(t, err)

	assert.Equal(t, "2500.00", report.TotalAccrued.String())
	require.Len(t, report.Lines, 1)
	assert.True(t, report.Lines[0].Posted)
	assert.NotEmpty(t, report.Lines[0].TransactionID)

	assert.Equal(t, "102500.00", account.CurrentBalance.String())
	assert.Equal(t, "2500.00", account.InterestEarned.String())
	assert.Equal(t, report.AccruedAt, account.SubLedgers[0].LastInterestAccrual)

	require.Len(t, account.Transactions, 2)
	posted := account.Transactions[1]
	assert.Equal(t, TypeInterest, posted.Type)
	assert.Equal(t, DirectionCredit, posted.Direction)
	assert.True(t, VerifyChain(account).Valid)
	assert.True(t, account.SubLedgerBalanceSum().Equal(account.CurrentBalance))
}

func TestAccrueSkipsZeroLines(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(5 * 24 * time.Hour)
	})

	report, err := e.Accrue(account, testActor())
	require.NoError(t, err)
	assert.True(t, report.TotalAccrued.IsZero())
	assert.Len(t, account.Transactions, 1)
	assert.True(t, account.InterestEarned.IsZero())
}

func TestAccrualRespectsLastAccrualDate(t *testing.T) {
	account, p := interestAccount(t, 100000, "0.025")
	account.SubLedgers[0].LastInterestAccrual = testOpened.Add(time.Hour).Add(300 * 24 * time.Hour)
	e := NewInterestEngine(DefaultConfig(), p).WithClock(func() time.Time {
		return testOpened.Add(time.Hour).Add(365 * 24 * time.Hour)
	})

	report := e.Calculate(account)
	require.Len(t, report.Lines, 1)
	// Only the 65 days since the last accrual count.
	assert.Equal(t, 65, report.Lines[0].HoldingDays)
	assert.Equal(t, "445.21", report.Lines[0].Interest.String())
}
