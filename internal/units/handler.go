package units

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nuzulstay/nuzulstay/internal/guard"
	"github.com/nuzulstay/nuzulstay/internal/platform/httpx"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Handler exposes building and unit administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers building and unit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/buildings", h.listBuildings)
	r.Post("/buildings", h.createBuilding)
	r.Post("/buildings/{id}/archive", h.archiveBuilding)

	r.Get("/units", h.listUnits)
	r.Post("/units", h.createUnit)
	r.Get("/units/{id}", h.getUnit)
	r.Patch("/units/{id}", h.updateUnit)
	r.Post("/units/{id}/archive", h.archiveUnit)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var conflict *guard.ExternalConflictError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrUniquenessViolation):
		httpx.Problem(w, http.StatusConflict, "Duplicate Unit Number", "This unit number already exists in the building.")
	case errors.Is(err, ErrArchiveBlocked):
		httpx.Problem(w, http.StatusConflict, "Archive Blocked", shared.UserSafeMessage(err))
	case errors.As(err, &conflict):
		httpx.Problem(w, http.StatusConflict, "Externally Controlled", conflict.UserMessage())
	default:
		h.logger.Error("units request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

type buildingRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (h *Handler) listBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.service.ListBuildings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildings)
}

func (h *Handler) createBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateBuilding(r.Context(), Building{Name: req.Name, Address: req.Address}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) archiveBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Building ID", "")
		return
	}
	if err := h.service.ArchiveBuilding(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unitRequest struct {
	BuildingID      int64  `json:"building_id" validate:"required"`
	UnitNumber      string `json:"unit_number" validate:"required"`
	MonthlyBaseRent string `json:"monthly_base_rent" validate:"required"`
	Status          string `json:"status" validate:"omitempty,oneof=AVAILABLE BLOCKED MAINTENANCE"`
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	var buildingID int64
	if raw := r.URL.Query().Get("building_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Building ID", "")
			return
		}
		buildingID = parsed
	}
	units, err := h.service.ListUnits(r.Context(), buildingID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rent, err := decimal.NewFromString(req.MonthlyBaseRent)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Rent", "monthly_base_rent must be a decimal number")
		return
	}
	created, err := h.service.CreateUnit(r.Context(), Unit{
		BuildingID:      req.BuildingID,
		UnitNumber:      req.UnitNumber,
		MonthlyBaseRent: rent,
		Status:          UnitStatus(req.Status),
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

type updateUnitRequest struct {
	MonthlyBaseRent *string `json:"monthly_base_rent"`
	Status          *string `json:"status" validate:"omitempty,oneof=AVAILABLE BLOCKED MAINTENANCE"`
}

func (h *Handler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	var req updateUnitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var input UpdateUnitInput
	if req.MonthlyBaseRent != nil {
		rent, err := decimal.NewFromString(*req.MonthlyBaseRent)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Rent", "monthly_base_rent must be a decimal number")
			return
		}
		input.MonthlyBaseRent = &rent
	}
	if req.Status != nil {
		status := UnitStatus(*req.Status)
		input.Status = &status
	}
	updated, err := h.service.UpdateUnit(r.Context(), id, input, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) archiveUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit ID", "")
		return
	}
	if err := h.service.ArchiveUnit(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
