package webhook

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nuzulstay/nuzulstay/internal/ledger"
	"github.com/nuzulstay/nuzulstay/internal/platform/httpx"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Handler receives verified payment-provider callbacks.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.payments)
}

type paymentEventRequest struct {
	EventID       string `json:"event_id" validate:"required"`
	Type          string `json:"type" validate:"required"`
	LedgerEntryID int64  `json:"ledger_entry_id" validate:"required"`
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	deliveryID := uuid.NewString()

	var req paymentEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	outcome, err := h.service.Process(r.Context(), Event{
		EventID:       req.EventID,
		Type:          req.Type,
		LedgerEntryID: req.LedgerEntryID,
	})
	if err != nil {
		h.logger.Error("webhook payment event",
			slog.String("delivery_id", deliveryID),
			slog.String("event_id", req.EventID),
			slog.Any("error", err))
		switch {
		case errors.Is(err, ErrUnknownEventType):
			httpx.Problem(w, http.StatusBadRequest, "Unknown Event Type", "")
		case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrActorNotAllowed):
			// A retry will never succeed; tell the provider to stop.
			httpx.Problem(w, http.StatusUnprocessableEntity, "Not Applicable", shared.UserSafeMessage(err))
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		default:
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	h.logger.Info("webhook payment event",
		slog.String("delivery_id", deliveryID),
		slog.String("event_id", req.EventID),
		slog.String("outcome", string(outcome)))
	httpx.JSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
