package renewal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nuzulstay/nuzulstay/internal/platform/httpx"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Handler exposes renewal eligibility and extension approval endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers renewal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/bookings/{bookingID}/eligibility", h.eligibility)
	r.Get("/bookings/{bookingID}/extensions", h.list)
	r.Post("/bookings/{bookingID}/extensions", h.approve)
}

func bookingIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "No such booking.")
	case errors.Is(err, ErrChangeNoteRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Change Note Required", "A change note describing the external update is required before this extension can be approved.")
	case errors.Is(err, ErrNotEligible):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Eligible", shared.UserSafeMessage(err))
	default:
		h.logger.Error("renewal request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) eligibility(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Booking ID", "")
		return
	}
	elig, err := h.service.Eligibility(r.Context(), bookingID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, elig)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Booking ID", "")
		return
	}
	extensions, err := h.service.Extensions(r.Context(), bookingID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, extensions)
}

type approveRequest struct {
	NewEndDate time.Time `json:"new_end_date" validate:"required"`
	ChangeNote string    `json:"change_note"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Booking ID", "")
		return
	}
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ext, err := h.service.ApproveExtension(r.Context(), ApproveExtensionInput{
		BookingID:  bookingID,
		NewEndDate: req.NewEndDate,
		ChangeNote: req.ChangeNote,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ext)
}
