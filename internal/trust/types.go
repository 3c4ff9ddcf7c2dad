package trust

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/pkg/hashchain"
)

// AccountStatus is the lifecycle state of a trust account.
type AccountStatus string

const (
	AccountPendingVerification AccountStatus = "pending_verification"
	AccountActive              AccountStatus = "active"
	AccountSuspended           AccountStatus = "suspended"
	AccountFrozen              AccountStatus = "frozen"
	AccountClosed              AccountStatus = "closed"
)

// SubLedgerStatus is the lifecycle state of a client sub-ledger.
type SubLedgerStatus string

const (
	SubLedgerActive    SubLedgerStatus = "active"
	SubLedgerInactive  SubLedgerStatus = "inactive"
	SubLedgerClosed    SubLedgerStatus = "closed"
	SubLedgerSuspended SubLedgerStatus = "suspended"
)

// TransactionType is the closed enumeration of ledger transaction types.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypeInterest   TransactionType = "interest"
	TypeRefund     TransactionType = "refund"
	TypeFee        TransactionType = "fee"
	TypeCorrection TransactionType = "correction"
	TypeReversal   TransactionType = "reversal"
)

// EntryDirection records whether a transaction increased or decreased the
// account balance. Reversal entries take the opposite direction of the
// transaction they cancel, so direction is stored rather than re-derived.
type EntryDirection string

const (
	DirectionCredit EntryDirection = "credit"
	DirectionDebit  EntryDirection = "debit"
)

// directionOf maps a transaction type to its balance direction. Reversal is
// absent on purpose: its direction depends on the original entry.
func directionOf(t TransactionType) (EntryDirection, bool) {
	switch t {
	case TypeDeposit, TypeInterest, TypeCorrection:
		return DirectionCredit, true
	case TypeWithdrawal, TypeTransfer, TypeRefund, TypeFee:
		return DirectionDebit, true
	}
	return "", false
}

// TransactionStatus is the post-commit state of a ledger transaction.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusReversed  TransactionStatus = "reversed"
)

// LedgerTransaction is immutable once committed. The only permitted edit is
// stamping reversal metadata on the original entry when a reversing entry is
// appended; every field covered by CanonicalPayload is frozen at commit.
type LedgerTransaction struct {
	ID              string            `json:"id"`
	Type            TransactionType   `json:"type"`
	Purpose         string            `json:"purpose,omitempty"`
	Direction       EntryDirection    `json:"direction"`
	Amount          money.Amount      `json:"amount"`
	RunningBalance  money.Amount      `json:"running_balance"`
	ClientID        string            `json:"client_id"`
	ClientName      string            `json:"client_name,omitempty"`
	MatterReference string            `json:"matter_reference"`
	Description     string            `json:"description,omitempty"`
	Reference       string            `json:"reference,omitempty"`
	Status          TransactionStatus `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	ActorID         string            `json:"actor_id"`

	Nonce           string `json:"nonce"`
	PreviousHash    string `json:"previous_hash"`
	TransactionHash string `json:"transaction_hash"`

	IsReversal            bool       `json:"is_reversal,omitempty"`
	OriginalTransactionID string     `json:"original_transaction_id,omitempty"`
	ReversedAt            *time.Time `json:"reversed_at,omitempty"`
	ReversedBy            string     `json:"reversed_by,omitempty"`
	ReversalReason        string     `json:"reversal_reason,omitempty"`
	ReversalTransactionID string     `json:"reversal_transaction_id,omitempty"`
}

// CanonicalPayload serializes the digest-covered fields in a fixed order.
// Reversal-stamp fields (Status, ReversedAt, ReversedBy, ReversalReason,
// ReversalTransactionID) are excluded: they are written after commit and
// must not break the chain.
func (t *LedgerTransaction) CanonicalPayload() string {
	return strings.Join([]string{
		t.ID,
		string(t.Type),
		t.Purpose,
		string(t.Direction),
		t.Amount.String(),
		t.RunningBalance.String(),
		t.ClientID,
		t.MatterReference,
		t.Description,
		t.Reference,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
		t.ActorID,
		strconv.FormatBool(t.IsReversal),
		t.OriginalTransactionID,
	}, "|")
}

func (t *LedgerTransaction) EntryNonce() string     { return t.Nonce }
func (t *LedgerTransaction) PreviousDigest() string { return t.PreviousHash }
func (t *LedgerTransaction) Digest() string         { return t.TransactionHash }

// ClientSubLedger is the per (client, matter) running balance inside an
// account. It is derived state: mutated only by the transaction processor
// and recomputable from the transaction history.
type ClientSubLedger struct {
	ClientID            string          `json:"client_id"`
	ClientName          string          `json:"client_name,omitempty"`
	MatterReference     string          `json:"matter_reference"`
	Balance             money.Amount    `json:"balance"`
	Pending             money.Amount    `json:"pending"`
	LastTransaction     time.Time       `json:"last_transaction"`
	LastTransactionID   string          `json:"last_transaction_id,omitempty"`
	LastInterestAccrual time.Time       `json:"last_interest_accrual,omitempty"`
	TransactionCount    int             `json:"transaction_count"`
	Status              SubLedgerStatus `json:"status"`
}

// InterestPolicy configures accrual for an account. Basis is ACT/365 fixed.
type InterestPolicy struct {
	AnnualRate    decimal.Decimal `json:"annual_rate"`
	AccrualBasis  string          `json:"accrual_basis"`
	MinimumPayout money.Amount    `json:"minimum_payout"`
}

// ComplianceState tracks reconciliation health for an account.
type ComplianceState struct {
	LastReconciliation         time.Time `json:"last_reconciliation,omitempty"`
	NextReconciliationDue      time.Time `json:"next_reconciliation_due"`
	ReconciliationScore        float64   `json:"reconciliation_score"`
	ConsecutiveReconciliations int       `json:"consecutive_reconciliations"`
}

// FlagSeverity orders compliance flags for alerting.
type FlagSeverity string

const (
	SeverityWarning  FlagSeverity = "warning"
	SeverityMedium   FlagSeverity = "medium"
	SeverityHigh     FlagSeverity = "high"
	SeverityCritical FlagSeverity = "critical"
)

// ComplianceFlag is raised when an invariant is violated or a threshold is
// crossed. Flags are appended, never deleted; resolution is recorded in place.
type ComplianceFlag struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Severity    FlagSeverity `json:"severity"`
	Description string       `json:"description"`
	RaisedAt    time.Time    `json:"raised_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	ResolvedBy  string       `json:"resolved_by,omitempty"`
	Resolution  string       `json:"resolution,omitempty"`
}

// ReconciliationStatus is the outcome state of a reconciliation run.
type ReconciliationStatus string

const (
	ReconPending    ReconciliationStatus = "pending"
	ReconInProgress ReconciliationStatus = "in_progress"
	ReconCompleted  ReconciliationStatus = "completed"
	ReconDisputed   ReconciliationStatus = "disputed"
	ReconFailed     ReconciliationStatus = "failed"
	ReconWaived     ReconciliationStatus = "waived"
)

// StatementMetadata identifies the external bank statement a reconciliation
// run was performed against.
type StatementMetadata struct {
	Date      time.Time `json:"date"`
	Reference string    `json:"reference"`
	Digest    string    `json:"digest,omitempty"`
}

// DiscrepancyItem is one unresolved difference found during reconciliation.
type DiscrepancyItem struct {
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
}

// ReconciliationRecord is one reconciliation run. Appended to the account's
// history, never deleted.
type ReconciliationRecord struct {
	ID                     string               `json:"id"`
	Status                 ReconciliationStatus `json:"status"`
	SystemBalance          money.Amount         `json:"system_balance"`
	BankBalance            money.Amount         `json:"bank_balance"`
	Discrepancy            money.Amount         `json:"discrepancy"`
	IsReconciled           bool                 `json:"is_reconciled"`
	VerifiedTransactionIDs []string             `json:"verified_transaction_ids,omitempty"`
	Discrepancies          []DiscrepancyItem    `json:"discrepancies,omitempty"`
	Statement              StatementMetadata    `json:"statement"`
	VerifiedBy             string               `json:"verified_by"`
	VerifiedAt             time.Time            `json:"verified_at"`
}

// AuditEntry describes one mutation of the account, for the audit trail.
type AuditEntry struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	Detail        string    `json:"detail,omitempty"`
	ActorID       string    `json:"actor_id"`
	ActorIP       string    `json:"actor_ip,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BankDescriptor identifies the underlying bank account without carrying the
// full account number.
type BankDescriptor struct {
	BankName      string `json:"bank_name"`
	AccountMasked string `json:"account_masked"`
	BranchCode    string `json:"branch_code,omitempty"`
}

// TrustAccount is the aggregate root: it exclusively owns its sub-ledgers,
// transaction history, reconciliation records, flags and audit trail. All of
// it is committed as a single atomic write.
type TrustAccount struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	PractitionerID string         `json:"practitioner_id"`
	Bank           BankDescriptor `json:"bank"`
	Status         AccountStatus  `json:"status"`

	CurrentBalance   money.Amount `json:"current_balance"`
	AvailableBalance money.Amount `json:"available_balance"`
	PendingBalance   money.Amount `json:"pending_balance"`
	InterestEarned   money.Amount `json:"interest_earned"`

	Interest   InterestPolicy  `json:"interest_policy"`
	Compliance ComplianceState `json:"compliance"`

	// IntegrityHash is a coarse rolling digest over account identity,
	// balance and commit time, independent of the per-transaction chain.
	IntegrityHash string `json:"integrity_hash"`

	SubLedgers      []*ClientSubLedger      `json:"sub_ledgers"`
	Transactions    []*LedgerTransaction    `json:"transactions"`
	Reconciliations []*ReconciliationRecord `json:"reconciliations"`
	Flags           []*ComplianceFlag       `json:"flags"`
	AuditTrail      []AuditEntry            `json:"audit_trail"`

	Version  int64      `json:"version"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// ActorContext carries the authenticated actor identity supplied by the
// authentication layer, recorded on every mutation for audit.
type ActorContext struct {
	ActorID       string `json:"actor_id"`
	IP            string `json:"ip,omitempty"`
	Device        string `json:"device,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// TransactionRequest is the external request to post a transaction.
type TransactionRequest struct {
	Type            TransactionType `json:"type"`
	Purpose         string          `json:"purpose,omitempty"`
	Amount          money.Amount    `json:"amount"`
	ClientID        string          `json:"client_id"`
	ClientName      string          `json:"client_name,omitempty"`
	MatterReference string          `json:"matter_reference"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
}

// TransactionResult is returned for a committed transaction.
type TransactionResult struct {
	TransactionID    string       `json:"transaction_id"`
	TransactionHash  string       `json:"transaction_hash"`
	AccountBalance   money.Amount `json:"account_balance"`
	SubLedgerBalance money.Amount `json:"sub_ledger_balance"`
}

// ReconciliationResult is returned for a reconciliation run.
type ReconciliationResult struct {
	RecordID     string               `json:"record_id"`
	Status       ReconciliationStatus `json:"status"`
	IsReconciled bool                 `json:"is_reconciled"`
	Discrepancy  money.Amount         `json:"discrepancy"`
	Score        float64              `json:"score"`
	FlagRaised   string               `json:"flag_raised,omitempty"`
}

// InterestLine is the per-client detail of an accrual run, kept for
// transparency and dispute handling.
type InterestLine struct {
	ClientID        string          `json:"client_id"`
	MatterReference string          `json:"matter_reference"`
	Principal       money.Amount    `json:"principal"`
	AnnualRate      decimal.Decimal `json:"annual_rate"`
	HoldingDays     int             `json:"holding_days"`
	Interest        money.Amount    `json:"interest"`
	Posted          bool            `json:"posted"`
	TransactionID   string          `json:"transaction_id,omitempty"`
}

// InterestReport summarizes one accrual run.
type InterestReport struct {
	AccountID    string         `json:"account_id"`
	AccruedAt    time.Time      `json:"accrued_at"`
	Lines        []InterestLine `json:"lines"`
	TotalAccrued money.Amount   `json:"total_accrued"`
}

// VerificationResult is the outcome of a hash chain walk.
type VerificationResult struct {
	Valid       bool   `json:"valid"`
	Entries     int    `json:"entries"`
	BrokenIndex int    `json:"broken_index"` // -1 when valid
	Reason      string `json:"reason,omitempty"`
}

// AuditReport is a read-only compliance report over a time window.
type AuditReport struct {
	AccountID        string                           `json:"account_id"`
	Start            time.Time                        `json:"start"`
	End              time.Time                        `json:"end"`
	OpeningBalance   money.Amount                     `json:"opening_balance"`
	ClosingBalance   money.Amount                     `json:"closing_balance"`
	NetChange        money.Amount                     `json:"net_change"`
	TotalsByType     map[TransactionType]money.Amount `json:"totals_by_type"`
	TransactionCount int                              `json:"transaction_count"`
	DistinctClients  int                              `json:"distinct_clients"`
	DistinctMatters  int                              `json:"distinct_matters"`
	Reconciliations  []*ReconciliationRecord          `json:"reconciliations,omitempty"`
	Flags            []*ComplianceFlag                `json:"flags,omitempty"`
	ChainValid       bool                             `json:"chain_valid"`
	GeneratedAt      time.Time                        `json:"generated_at"`
}

// CloseReceipt is returned when an account is closed.
type CloseReceipt struct {
	AccountID        string       `json:"account_id"`
	ClosedAt         time.Time    `json:"closed_at"`
	FinalBalance     money.Amount `json:"final_balance"`
	TransactionCount int          `json:"transaction_count"`
	ChainValid       bool         `json:"chain_valid"`
	Reason           string       `json:"reason,omitempty"`
}

// chainTip returns the digest the next transaction must link to.
func (a *TrustAccount) chainTip() string {
	if len(a.Transactions) == 0 {
		return hashchain.Genesis
	}
	return a.Transactions[len(a.Transactions)-1].TransactionHash
}

// findTransaction looks up a committed transaction by id.
func (a *TrustAccount) findTransaction(id string) *LedgerTransaction {
	for _, tx := range a.Transactions {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

// SubLedgerBalanceSum adds up every sub-ledger balance, closed ones included.
// The conservation invariant requires it to equal CurrentBalance after every
// committed transaction.
func (a *TrustAccount) SubLedgerBalanceSum() money.Amount {
	sum := money.Zero()
	for _, s := range a.SubLedgers {
		sum = sum.Add(s.Balance)
	}
	return sum
}

func (a *TrustAccount) appendAudit(action, detail string, actor ActorContext, at time.Time) {
	a.AuditTrail = append(a.AuditTrail, AuditEntry{
		ID:            newID(),
		Action:        action,
		Detail:        detail,
		ActorID:       actor.ActorID,
		ActorIP:       actor.IP,
		CorrelationID: actor.CorrelationID,
		Timestamp:     at,
	})
}

func (a *TrustAccount) raiseFlag(flagType string, severity FlagSeverity, description string, at time.Time) *ComplianceFlag {
	f := &ComplianceFlag{
		ID:          newID(),
		Type:        flagType,
		Severity:    severity,
		Description: description,
		RaisedAt:    at,
	}
	a.Flags = append(a.Flags, f)
	return f
}
