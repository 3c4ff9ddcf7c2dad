package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/internal/security"
	"github.com/example/trust-ledger/internal/trust"
)

// ActorIDHeader carries the authenticated actor identity, set by the
// upstream authentication gateway.
const ActorIDHeader = "X-Actor-ID"

func actorFromRequest(r *http.Request) trust.ActorContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return trust.ActorContext{
		ActorID:       r.Header.Get(ActorIDHeader),
		IP:            ip,
		CorrelationID: security.CorrelationIDFromContext(r.Context()),
	}
}

// statusForKind maps the ledger error taxonomy onto HTTP statuses.
func statusForKind(kind trust.Kind) int {
	switch kind {
	case trust.KindInvalidAmount, trust.KindInvalidTransaction:
		return http.StatusBadRequest
	case trust.KindNotFound:
		return http.StatusNotFound
	case trust.KindInsufficientFunds, trust.KindAlreadyReversed, trust.KindCannotReverseAReversal,
		trust.KindAccountHasBalance, trust.KindPendingTransactions, trust.KindAccountNotActive,
		trust.KindDiscrepancyDetected, trust.KindConflict:
		return http.StatusConflict
	case trust.KindPersistenceUnavailable:
		return http.StatusServiceUnavailable
	case trust.KindChainBroken:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	kind := trust.KindOf(err)
	if kind == "" {
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	status := statusForKind(kind)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	reason, precondition := errorDetail(err)
	security.WriteJSONErrorDetail(w, r, status, string(kind), reason, precondition)
}

func errorDetail(err error) (reason, precondition string) {
	var le *trust.Error
	if errors.As(err, &le) {
		return le.Reason, le.Precondition
	}
	return err.Error(), ""
}

func handleOpenAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trust.OpenAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		account, err := deps.Ledger.OpenAccount(r.Context(), req, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, account)
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Ledger.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account)
	}
}

func handleActivateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.ActivateAccount(r.Context(), chi.URLParam(r, "accountID"), actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": string(trust.AccountActive)})
	}
}

func handleSuspendAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.SuspendAccount(r.Context(), chi.URLParam(r, "accountID"), actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": string(trust.AccountSuspended)})
	}
}

func handleFreezeAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Ledger.FreezeAccount(r.Context(), chi.URLParam(r, "accountID"), actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": string(trust.AccountFrozen)})
	}
}

func handlePostTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trust.TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeLedgerError(w, r, err)
			return
		}

		result, err := deps.Ledger.ProcessTransaction(r.Context(), chi.URLParam(r, "accountID"), req, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, result)
	}
}

func handleReverseTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		result, err := deps.Ledger.ReverseTransaction(r.Context(),
			chi.URLParam(r, "accountID"), chi.URLParam(r, "transactionID"), req.Reason, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, result)
	}
}

func handleReconcile(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BankBalance money.Amount            `json:"bank_balance"`
			Statement   trust.StatementMetadata `json:"statement"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeLedgerError(w, r, err)
			return
		}

		result, err := deps.Ledger.Reconcile(r.Context(), chi.URLParam(r, "accountID"), req.BankBalance, req.Statement, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, result)
	}
}

func handleAccrueInterest(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Ledger.CalculateInterest(r.Context(), chi.URLParam(r, "accountID"), actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

func handlePreviewInterest(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Ledger.PreviewInterest(r.Context(), chi.URLParam(r, "accountID"))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

func handleVerifyChain(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Ledger.VerifyChain(r.Context(), chi.URLParam(r, "accountID"))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, result)
	}
}

func handleAuditReport(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_request", "start must be RFC 3339", "")
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_request", "end must be RFC 3339", "")
			return
		}

		report, err := deps.Ledger.GenerateAuditReport(r.Context(), chi.URLParam(r, "accountID"), start, end)
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, report)
	}
}

func handleCloseAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		receipt, err := deps.Ledger.CloseAccount(r.Context(), chi.URLParam(r, "accountID"), req.Reason, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, receipt)
	}
}

func handleResolveFlag(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Resolution string `json:"resolution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		err := deps.Ledger.ResolveFlag(r.Context(),
			chi.URLParam(r, "accountID"), chi.URLParam(r, "flagID"), req.Resolution, actorFromRequest(r))
		if err != nil {
			writeLedgerError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "resolved"})
	}
}
