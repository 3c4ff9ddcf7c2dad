package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/pkg/hashchain"
)

func newID() string { return uuid.NewString() }

// Processor validates and applies single transactions against an account
// aggregate. It mutates the aggregate it is handed; atomicity and rollback
// are the store scope's responsibility (the aggregate is discarded on error).
type Processor struct {
	cfg   Config
	clock func() time.Time
}

// NewProcessor creates a processor with the given configuration.
func NewProcessor(cfg Config) *Processor {
	return &Processor{cfg: cfg, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source, for tests.
func (p *Processor) WithClock(clock func() time.Time) *Processor {
	p.clock = clock
	return p
}

// Process runs the transaction lifecycle: validate, apply the signed delta
// to the sub-ledger and account balances, chain the new entry, and stamp the
// rolling integrity hash and audit trail. Validation failures reject before
// any mutation occurs.
func (p *Processor) Process(account *TrustAccount, req TransactionRequest, actor ActorContext) (*TransactionResult, error) {
	if account.Status != AccountActive {
		return nil, NewPreconditionError(KindAccountNotActive,
			fmt.Sprintf("account %s is %s", account.ID, account.Status),
			"account must be active")
	}

	direction, ok := directionOf(req.Type)
	if !ok {
		return nil, NewPreconditionError(KindInvalidTransaction,
			fmt.Sprintf("unknown transaction type %q", req.Type),
			"type must be one of deposit, withdrawal, transfer, interest, refund, fee, correction")
	}
	if err := p.validateRequest(req); err != nil {
		return nil, err
	}

	return p.commit(account, req, direction, actor, false, "")
}

// Reverse cancels a committed transaction with a compensating entry of the
// opposite direction. The original is never edited beyond its reversal
// stamp; history stays append-only.
func (p *Processor) Reverse(account *TrustAccount, transactionID, reason string, actor ActorContext) (*TransactionResult, error) {
	original := account.findTransaction(transactionID)
	if original == nil {
		return nil, NewError(KindNotFound, fmt.Sprintf("transaction %s not found", transactionID))
	}
	if original.IsReversal {
		return nil, NewPreconditionError(KindCannotReverseAReversal,
			fmt.Sprintf("transaction %s is itself a reversal", transactionID),
			"target must not be a reversal entry")
	}
	if original.Status == StatusReversed || original.ReversedAt != nil {
		return nil, NewPreconditionError(KindAlreadyReversed,
			fmt.Sprintf("transaction %s was already reversed", transactionID),
			"target must not carry reversal metadata")
	}
	if account.Status != AccountActive {
		return nil, NewPreconditionError(KindAccountNotActive,
			fmt.Sprintf("account %s is %s", account.ID, account.Status),
			"account must be active")
	}

	direction := DirectionCredit
	if original.Direction == DirectionCredit {
		direction = DirectionDebit
	}

	req := TransactionRequest{
		Type:            TypeReversal,
		Purpose:         original.Purpose,
		Amount:          original.Amount,
		ClientID:        original.ClientID,
		ClientName:      original.ClientName,
		MatterReference: original.MatterReference,
		Description:     fmt.Sprintf("reversal of %s: %s", original.ID, reason),
		Reference:       original.Reference,
	}

	result, err := p.commit(account, req, direction, actor, true, original.ID)
	if err != nil {
		return nil, err
	}

	now := p.clock()
	original.Status = StatusReversed
	original.ReversedAt = &now
	original.ReversedBy = actor.ActorID
	original.ReversalReason = reason
	original.ReversalTransactionID = result.TransactionID

	account.appendAudit("transaction.reversed",
		fmt.Sprintf("transaction %s reversed by %s", original.ID, result.TransactionID),
		actor, now)

	return result, nil
}

func (p *Processor) validateRequest(req TransactionRequest) error {
	if !req.Amount.IsPositive() {
		return NewPreconditionError(KindInvalidAmount,
			fmt.Sprintf("amount %s is not positive", req.Amount),
			"amount must be greater than zero")
	}
	if req.Amount.GreaterThan(p.cfg.MaxTransactionAmount) {
		return NewPreconditionError(KindInvalidAmount,
			fmt.Sprintf("amount %s exceeds the configured maximum %s", req.Amount, p.cfg.MaxTransactionAmount),
			"amount must not exceed the configured maximum")
	}
	if strings.TrimSpace(req.ClientID) == "" {
		return NewPreconditionError(KindInvalidTransaction, "client id is required", "client_id must be set")
	}
	if strings.TrimSpace(req.MatterReference) == "" {
		return NewPreconditionError(KindInvalidTransaction, "matter reference is required", "matter_reference must be set")
	}
	return nil
}

// commit is steps 3-8 of the lifecycle. The balance check and the mutations
// below happen against the single aggregate copy owned by the store scope,
// so concurrent debits cannot both pass the available check.
func (p *Processor) commit(account *TrustAccount, req TransactionRequest, direction EntryDirection, actor ActorContext, isReversal bool, originalID string) (*TransactionResult, error) {
	now := p.clock()

	delta := req.Amount
	if direction == DirectionDebit {
		if account.AvailableBalance.LessThan(req.Amount) {
			return nil, NewPreconditionError(KindInsufficientFunds,
				fmt.Sprintf("available balance %s does not cover %s", account.AvailableBalance, req.Amount),
				"available balance must cover the debit")
		}
		delta = req.Amount.Neg()
	}

	sub := account.ensureSubLedger(req.ClientID, req.ClientName, req.MatterReference, now)
	pooled := false
	if direction == DirectionDebit && !sub.canDebit(req.Amount) {
		if !p.cfg.AllowPooledDebits {
			return nil, NewPreconditionError(KindInsufficientFunds,
				fmt.Sprintf("sub-ledger balance %s for client %s does not cover %s", sub.Balance, sub.ClientID, req.Amount),
				"client sub-ledger balance must cover the debit")
		}
		pooled = true
	}

	nonce, err := hashchain.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to build chain entry: %w", err)
	}

	account.CurrentBalance = account.CurrentBalance.Add(delta)
	account.AvailableBalance = account.CurrentBalance.Sub(account.PendingBalance)

	tx := &LedgerTransaction{
		ID:                    newID(),
		Type:                  req.Type,
		Purpose:               req.Purpose,
		Direction:             direction,
		Amount:                req.Amount,
		RunningBalance:        account.CurrentBalance,
		ClientID:              req.ClientID,
		ClientName:            req.ClientName,
		MatterReference:       req.MatterReference,
		Description:           req.Description,
		Reference:             req.Reference,
		Status:                StatusCompleted,
		Timestamp:             now,
		ActorID:               actor.ActorID,
		Nonce:                 nonce,
		PreviousHash:          account.chainTip(),
		IsReversal:            isReversal,
		OriginalTransactionID: originalID,
	}
	tx.TransactionHash = hashchain.ComputeDigest(tx.CanonicalPayload(), tx.PreviousHash, tx.Nonce)

	subBalance := sub.apply(delta, tx.ID, now)
	account.Transactions = append(account.Transactions, tx)
	account.IntegrityHash = rollIntegrityHash(account.IntegrityHash, account.ID, account.CurrentBalance, now)

	if pooled {
		account.raiseFlag("commingling_risk", SeverityWarning,
			fmt.Sprintf("debit %s drove sub-ledger for client %s matter %s to %s under the pooled-debit exception",
				tx.ID, sub.ClientID, sub.MatterReference, subBalance), now)
	}

	account.appendAudit("transaction.committed",
		fmt.Sprintf("%s %s %s for client %s matter %s", direction, req.Type, req.Amount, req.ClientID, req.MatterReference),
		actor, now)

	return &TransactionResult{
		TransactionID:    tx.ID,
		TransactionHash:  tx.TransactionHash,
		AccountBalance:   account.CurrentBalance,
		SubLedgerBalance: subBalance,
	}, nil
}

// rollIntegrityHash folds account identity, balance and commit time into the
// previous summary digest. A coarser tamper signal than the per-transaction
// chain, maintained independently of it.
func rollIntegrityHash(previous, accountID string, balance money.Amount, at time.Time) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		previous,
		accountID,
		balance.String(),
		at.UTC().Format(time.RFC3339Nano),
	}, "|")))
	return hex.EncodeToString(sum[:])
}
