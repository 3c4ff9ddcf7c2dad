package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/trust-ledger/internal/security"
	"github.com/example/trust-ledger/internal/trust"
)

// Dependencies wires the router to the ledger core. Authentication and
// tenant scoping happen upstream; this surface only translates requests and
// error kinds.
type Dependencies struct {
	Logger       *slog.Logger
	Ledger       *trust.Service
	MaxBodyBytes int64
}

// NewRouter builds the HTTP surface over the trust ledger service.
func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}

	openAccountV, err := security.NewJSONSchemaValidator(openAccountSchema)
	if err != nil {
		return nil, err
	}
	transactionV, err := security.NewJSONSchemaValidator(transactionSchema)
	if err != nil {
		return nil, err
	}
	reverseV, err := security.NewJSONSchemaValidator(reverseSchema)
	if err != nil {
		return nil, err
	}
	reconcileV, err := security.NewJSONSchemaValidator(reconcileSchema)
	if err != nil {
		return nil, err
	}
	closeV, err := security.NewJSONSchemaValidator(closeSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1/accounts", func(r chi.Router) {
		r.With(openAccountV.Middleware).Post("/", handleOpenAccount(deps))

		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", handleGetAccount(deps))
			r.Post("/activate", handleActivateAccount(deps))
			r.Post("/suspend", handleSuspendAccount(deps))
			r.Post("/freeze", handleFreezeAccount(deps))
			r.With(closeV.Middleware).Post("/close", handleCloseAccount(deps))

			r.With(transactionV.Middleware).Post("/transactions", handlePostTransaction(deps))
			r.With(reverseV.Middleware).Post("/transactions/{transactionID}/reverse", handleReverseTransaction(deps))

			r.With(reconcileV.Middleware).Post("/reconciliations", handleReconcile(deps))

			r.Post("/interest", handleAccrueInterest(deps))
			r.Get("/interest", handlePreviewInterest(deps))

			r.Get("/chain/verify", handleVerifyChain(deps))
			r.Get("/audit-report", handleAuditReport(deps))

			r.Post("/flags/{flagID}/resolve", handleResolveFlag(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}
