package security

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the stable error envelope. Kind is machine-readable;
// Reason and Precondition let callers render an actionable message without
// inspecting ledger internals.
type ErrorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	Precondition  string `json:"precondition,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code string) {
	WriteJSONErrorDetail(w, r, status, code, "", "")
}

func WriteJSONErrorDetail(w http.ResponseWriter, r *http.Request, status int, code, reason, precondition string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         code,
		Reason:        reason,
		Precondition:  precondition,
		CorrelationID: cid,
	})
}
