package trust

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/trust-ledger/internal/locking"
	"github.com/example/trust-ledger/internal/money"
)

// Alerter receives integrity violations and critical flags. Surfacing these
// to a compliance collaborator is mandatory; logging alone is not enough.
type Alerter interface {
	ChainBroken(accountID string, index int, reason string)
	CriticalFlag(accountID string, flag ComplianceFlag)
}

// LogAlerter is the fallback Alerter: it logs at error level. Deployments
// are expected to wire a real compliance channel.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a *LogAlerter) ChainBroken(accountID string, index int, reason string) {
	a.Logger.Error("hash chain broken", "account_id", accountID, "index", index, "reason", reason)
}

func (a *LogAlerter) CriticalFlag(accountID string, flag ComplianceFlag) {
	a.Logger.Error("critical compliance flag", "account_id", accountID, "flag_type", flag.Type, "description", flag.Description)
}

// Service is the ledger core's external interface. All mutating operations
// on one account are serialized through the lock manager and committed
// atomically through the store's update scope.
type Service struct {
	store     Store
	locks     locking.Manager
	processor *Processor
	recon     *Reconciler
	interest  *InterestEngine
	cfg       Config
	logger    *slog.Logger
	alerter   Alerter
	clock     func() time.Time
}

// NewService wires the engines over a store and lock manager.
func NewService(store Store, locks locking.Manager, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	proc := NewProcessor(cfg)
	return &Service{
		store:     store,
		locks:     locks,
		processor: proc,
		recon:     NewReconciler(cfg),
		interest:  NewInterestEngine(cfg, proc),
		cfg:       cfg,
		logger:    logger,
		alerter:   &LogAlerter{Logger: logger},
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithAlerter replaces the compliance alert channel.
func (s *Service) WithAlerter(a Alerter) *Service {
	s.alerter = a
	return s
}

// WithClock overrides the time source on the service and its engines, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	s.processor.WithClock(clock)
	s.recon.WithClock(clock)
	s.interest.WithClock(clock)
	return s
}

// OpenAccountRequest creates a trust account for a practitioner.
type OpenAccountRequest struct {
	TenantID       string         `json:"tenant_id"`
	PractitionerID string         `json:"practitioner_id"`
	Bank           BankDescriptor `json:"bank"`
	Interest       InterestPolicy `json:"interest_policy"`
}

// OpenAccount creates an account in pending_verification. ActivateAccount
// moves it to active once the bank descriptor has been verified.
func (s *Service) OpenAccount(ctx context.Context, req OpenAccountRequest, actor ActorContext) (*TrustAccount, error) {
	if req.PractitionerID == "" {
		return nil, NewPreconditionError(KindInvalidTransaction, "practitioner id is required", "practitioner_id must be set")
	}
	now := s.clock()
	if req.Interest.AccrualBasis == "" {
		req.Interest.AccrualBasis = "act/365"
	}
	account := &TrustAccount{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		PractitionerID:   req.PractitionerID,
		Bank:             req.Bank,
		Status:           AccountPendingVerification,
		CurrentBalance:   money.Zero(),
		AvailableBalance: money.Zero(),
		PendingBalance:   money.Zero(),
		InterestEarned:   money.Zero(),
		Interest:         req.Interest,
		Compliance: ComplianceState{
			NextReconciliationDue: now.Add(s.cfg.ReconciliationInterval),
			ReconciliationScore:   100,
		},
		OpenedAt: now,
	}
	account.appendAudit("account.opened", fmt.Sprintf("trust account for practitioner %s", req.PractitionerID), actor, now)

	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("trust account opened", "account_id", account.ID, "practitioner_id", req.PractitionerID)
	return account, nil
}

// ActivateAccount verifies and activates a pending or suspended account.
func (s *Service) ActivateAccount(ctx context.Context, accountID string, actor ActorContext) error {
	return s.transition(ctx, accountID, actor, "account.activated", AccountActive,
		AccountPendingVerification, AccountSuspended)
}

// SuspendAccount suspends an active account.
func (s *Service) SuspendAccount(ctx context.Context, accountID string, actor ActorContext) error {
	return s.transition(ctx, accountID, actor, "account.suspended", AccountSuspended, AccountActive)
}

// FreezeAccount freezes an account pending investigation.
func (s *Service) FreezeAccount(ctx context.Context, accountID string, actor ActorContext) error {
	return s.transition(ctx, accountID, actor, "account.frozen", AccountFrozen, AccountActive, AccountSuspended)
}

func (s *Service) transition(ctx context.Context, accountID string, actor ActorContext, action string, to AccountStatus, from ...AccountStatus) error {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return WrapPersistence(err)
	}
	defer release()

	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		allowed := false
		for _, f := range from {
			if a.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return NewPreconditionError(KindAccountNotActive,
				fmt.Sprintf("account %s is %s", accountID, a.Status),
				fmt.Sprintf("account must be in one of %v", from))
		}
		a.Status = to
		a.appendAudit(action, "", actor, s.clock())
		return nil
	})
	return err
}

// GetAccount returns a read-only snapshot of the aggregate.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*TrustAccount, error) {
	return s.store.Get(ctx, accountID)
}

// ProcessTransaction validates and applies a single transaction, atomically.
func (s *Service) ProcessTransaction(ctx context.Context, accountID string, req TransactionRequest, actor ActorContext) (*TransactionResult, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	defer release()

	var result *TransactionResult
	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		var perr error
		result, perr = s.processor.Process(a, req, actor)
		return perr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("transaction committed",
		"account_id", accountID, "transaction_id", result.TransactionID,
		"type", string(req.Type), "amount", req.Amount.String())
	return result, nil
}

// ReverseTransaction appends a compensating entry and stamps the original.
func (s *Service) ReverseTransaction(ctx context.Context, accountID, transactionID, reason string, actor ActorContext) (*TransactionResult, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	defer release()

	var result *TransactionResult
	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		var perr error
		result, perr = s.processor.Reverse(a, transactionID, reason, actor)
		return perr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("transaction reversed",
		"account_id", accountID, "original_id", transactionID, "reversal_id", result.TransactionID)
	return result, nil
}

// Reconcile compares the ledger balance against a bank statement balance.
// The balance is snapshotted inside the update scope, never re-read mid-run.
func (s *Service) Reconcile(ctx context.Context, accountID string, bankBalance money.Amount, stmt StatementMetadata, actor ActorContext) (*ReconciliationResult, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	defer release()

	var result *ReconciliationResult
	account, err := s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		var rerr error
		result, rerr = s.recon.Reconcile(a, bankBalance, stmt, actor)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	if result.FlagRaised != "" {
		s.logger.Warn("reconciliation discrepancy",
			"account_id", accountID, "discrepancy", result.Discrepancy.String(), "flag_id", result.FlagRaised)
		for _, f := range account.Flags {
			if f.ID == result.FlagRaised && f.Severity == SeverityCritical {
				s.alerter.CriticalFlag(accountID, *f)
			}
		}
	}
	return result, nil
}

// CalculateInterest computes interest for eligible sub-ledgers and posts
// each qualifying amount as a chained interest transaction.
func (s *Service) CalculateInterest(ctx context.Context, accountID string, actor ActorContext) (*InterestReport, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	defer release()

	var report *InterestReport
	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		var ierr error
		report, ierr = s.interest.Accrue(a, actor)
		return ierr
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// PreviewInterest computes the report without posting anything.
func (s *Service) PreviewInterest(ctx context.Context, accountID string) (*InterestReport, error) {
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.interest.Calculate(account), nil
}

// VerifyChain recomputes the hash chain. A broken chain is surfaced to the
// alerter and flagged on the account, never auto-corrected.
func (s *Service) VerifyChain(ctx context.Context, accountID string) (VerificationResult, error) {
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return VerificationResult{}, err
	}

	result := VerifyChain(account)
	if !result.Valid {
		s.alerter.ChainBroken(accountID, result.BrokenIndex, result.Reason)
		_, ferr := s.store.Update(ctx, accountID, func(a *TrustAccount) error {
			a.raiseFlag("chain_broken", SeverityCritical,
				fmt.Sprintf("hash chain broken at entry %d: %s", result.BrokenIndex, result.Reason), s.clock())
			return nil
		})
		if ferr != nil {
			s.logger.Error("failed to flag broken chain", "account_id", accountID, "error", ferr)
		}
	}
	return result, nil
}

// GenerateAuditReport produces a read-only compliance report over a window.
func (s *Service) GenerateAuditReport(ctx context.Context, accountID string, start, end time.Time) (*AuditReport, error) {
	if end.Before(start) {
		return nil, NewPreconditionError(KindInvalidTransaction, "end precedes start", "start must not be after end")
	}
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return GenerateAuditReport(account, start, end), nil
}

// CloseAccount closes an account whose balance and pending amounts are zero,
// closing every sub-ledger with it.
func (s *Service) CloseAccount(ctx context.Context, accountID, reason string, actor ActorContext) (*CloseReceipt, error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return nil, WrapPersistence(err)
	}
	defer release()

	var receipt *CloseReceipt
	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		if a.Status == AccountClosed {
			return NewPreconditionError(KindAccountNotActive,
				fmt.Sprintf("account %s is already closed", accountID), "account must not be closed")
		}
		if !a.CurrentBalance.IsZero() {
			return NewPreconditionError(KindAccountHasBalance,
				fmt.Sprintf("account holds %s", a.CurrentBalance), "balance must be zero")
		}
		if !a.PendingBalance.IsZero() {
			return NewPreconditionError(KindPendingTransactions,
				fmt.Sprintf("account has %s pending", a.PendingBalance), "pending amount must be zero")
		}
		for _, sub := range a.SubLedgers {
			if sub.Status == SubLedgerClosed {
				continue
			}
			if err := sub.close(); err != nil {
				return err
			}
		}

		now := s.clock()
		a.Status = AccountClosed
		a.ClosedAt = &now
		a.appendAudit("account.closed", reason, actor, now)

		receipt = &CloseReceipt{
			AccountID:        a.ID,
			ClosedAt:         now,
			FinalBalance:     a.CurrentBalance,
			TransactionCount: len(a.Transactions),
			ChainValid:       VerifyChain(a).Valid,
			Reason:           reason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("trust account closed", "account_id", accountID, "reason", reason)
	return receipt, nil
}

// ResolveFlag records the resolution of a compliance flag.
func (s *Service) ResolveFlag(ctx context.Context, accountID, flagID, resolution string, actor ActorContext) error {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		return WrapPersistence(err)
	}
	defer release()

	_, err = s.store.Update(ctx, accountID, func(a *TrustAccount) error {
		for _, f := range a.Flags {
			if f.ID != flagID {
				continue
			}
			if f.ResolvedAt != nil {
				return NewError(KindConflict, fmt.Sprintf("flag %s already resolved", flagID))
			}
			now := s.clock()
			f.ResolvedAt = &now
			f.ResolvedBy = actor.ActorID
			f.Resolution = resolution
			a.appendAudit("flag.resolved", fmt.Sprintf("flag %s (%s)", flagID, f.Type), actor, now)
			return nil
		}
		return NewError(KindNotFound, fmt.Sprintf("flag %s not found", flagID))
	})
	return err
}
