package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/platform/httpx"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Handler exposes the admin ledger API. Webhook ingestion has its own
// endpoint; nothing here can reach PAID or REFUNDED.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(60, time.Minute)).Get("/", h.search)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Post("/{id}/status", h.transition)
	r.Post("/{id}/adjustments", h.createAdjustment)
	r.Patch("/{id}", h.update)
}

type createEntryRequest struct {
	BookingID  int64  `json:"booking_id" validate:"required"`
	UnitID     int64  `json:"unit_id" validate:"required"`
	Type       string `json:"type" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency" validate:"required,len=3"`
	Status     string `json:"status" validate:"omitempty,oneof=DUE PENDING"`
	Method     string `json:"method"`
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type adjustmentRequest struct {
	Type   string `json:"type" validate:"required,oneof=ADJUSTMENT REFUND"`
	Amount string `json:"amount" validate:"required"`
}

type updateEntryRequest struct {
	Amount     *string `json:"amount"`
	Method     *string `json:"method"`
	GuestName  *string `json:"guest_name"`
	GuestPhone *string `json:"guest_phone"`
}

func entryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// respondError maps ledger errors onto problem responses with reasons an
// admin can act on.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Ledger entry not found.")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", "This status change is not allowed from the entry's current status.")
	case errors.Is(err, ErrActorNotAllowed):
		httpx.Problem(w, http.StatusForbidden, "Not Permitted", "Paid and refunded statuses can only be set by payment confirmation.")
	case errors.Is(err, ErrEntryImmutable):
		httpx.Problem(w, http.StatusConflict, "Entry Immutable", "Paid and refunded entries cannot be edited; create an adjustment instead.")
	case errors.Is(err, ErrAdjustmentNotAllowed):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Adjustment Not Allowed", "Adjustments can only be made against a paid entry.")
	case errors.Is(err, ErrInvalidAdjustmentAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Amount", "The adjustment amount must be positive and no more than the original payment.")
	case errors.Is(err, ErrConcurrentModification):
		httpx.Problem(w, http.StatusConflict, "Concurrent Change", "The entry changed while you were editing. Please try again.")
	case errors.Is(err, ErrDuplicateInvoiceNumber):
		httpx.Problem(w, http.StatusConflict, "Invoice Numbering Conflict", "Could not allocate an invoice number. Please try again.")
	default:
		h.logger.Error("ledger request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := SearchRequest{
		Status: EntryStatus(q.Get("status")),
		Type:   EntryType(q.Get("type")),
		Method: q.Get("method"),
		Query:  q.Get("q"),
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			req.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			req.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	entries, total, err := h.service.Search(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), CreateEntryInput{
		BookingID:  req.BookingID,
		UnitID:     req.UnitID,
		Type:       EntryType(req.Type),
		Amount:     amount,
		Currency:   req.Currency,
		Status:     EntryStatus(req.Status),
		Method:     req.Method,
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Transition(r.Context(), id, EntryStatus(req.Status), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
		return
	}
	entry, err := h.service.CreateAdjustment(r.Context(), id, EntryType(req.Type), amount, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var req updateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	input := UpdateEntryInput{Method: req.Method, GuestName: req.GuestName, GuestPhone: req.GuestPhone}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
			return
		}
		input.Amount = &amount
	}
	entry, err := h.service.UpdateEntry(r.Context(), id, input, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
