package occupancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nuzulstay/nuzulstay/internal/platform/httpx"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Handler exposes mapping CRUD and occupancy resolution endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers occupancy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/mappings", h.list)
	r.Post("/mappings", h.create)
	r.Put("/mappings/{unitID}", h.update)
	r.Delete("/mappings/{unitID}", h.remove)
	r.Get("/units/{unitID}/source", h.resolve)
}

type mappingRequest struct {
	UnitID         int64  `json:"unit_id" validate:"required"`
	ConnectionType string `json:"connection_type" validate:"required,oneof=API ICAL"`
	SourceOfTruth  string `json:"source_of_truth" validate:"required,oneof=BEDS24 LOCAL"`
	PropertyID     string `json:"property_id"`
	ImportURL      string `json:"import_url" validate:"omitempty,url"`
}

func unitIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "unitID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "No mapping exists for this unit.")
	case errors.Is(err, shared.ErrUniquenessViolation):
		httpx.Problem(w, http.StatusConflict, "Already Mapped", "This unit already has an external mapping.")
	default:
		h.logger.Error("occupancy request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.service.ListMappings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mappings)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (ExternalMapping, bool) {
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return ExternalMapping{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return ExternalMapping{}, false
	}
	mapping := ExternalMapping{
		UnitID:         req.UnitID,
		ConnectionType: ConnectionType(req.ConnectionType),
		SourceOfTruth:  SourceOfTruth(req.SourceOfTruth),
		PropertyID:     req.PropertyID,
		ImportURL:      req.ImportURL,
	}
	if err := mapping.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return ExternalMapping{}, false
	}
	return mapping, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	mapping, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateMapping(r.Context(), mapping, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	unitID, ok := unitIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	mapping, ok := h.decode(w, r)
	if !ok {
		return
	}
	mapping.UnitID = unitID
	updated, err := h.service.UpdateMapping(r.Context(), mapping, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	unitID, ok := unitIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	if err := h.service.DeleteMapping(r.Context(), unitID, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	unitID, ok := unitIDParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	resolution, err := h.service.ResolveForUnit(r.Context(), unitID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolution)
}
