package handlers

import (
	"net/http"
	"strconv"

	"driverlink/internal/domain"
	"driverlink/internal/http/middleware"
	"driverlink/internal/logx"
)

// CourierHandler serves HTTP endpoints for courier registry resources.
type CourierHandler struct {
	uc     courierUsecase
	logger logx.Logger
}

// NewCourierHandler wires a courierUsecase into HTTP handlers.
func NewCourierHandler(uc courierUsecase, logger logx.Logger) *CourierHandler {
	return &CourierHandler{uc: uc, logger: logger}
}

// Register handles POST /couriers.
func (h *CourierHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerCourierRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	id, err := h.uc.Register(r.Context(), &domain.Courier{
		Name:    req.Name,
		Phone:   req.Phone,
		Vehicle: domain.VehicleClass(req.Vehicle),
	})
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/couriers/"+strconv.FormatInt(id, 10))
	writeJSON(h.logger, w, r, http.StatusCreated, map[string]any{"id": id})
}

// Me handles GET /couriers/me for the acting courier.
func (h *CourierHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := courierFromRequest(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusForbidden, "courier identity required")
		return
	}

	c, err := h.uc.Get(r.Context(), id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toCourierResponse(c))
}

// UpdateLocation handles PUT /couriers/location for the acting courier.
func (h *CourierHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := courierFromRequest(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusForbidden, "courier identity required")
		return
	}
	var req updateLocationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	if err := h.uc.SetLocation(r.Context(), id, domain.Location{Lat: req.Lat, Lon: req.Lon}); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// UpdateAvailability handles PUT /couriers/availability for the acting
// courier. Only offline and available are accepted; busy belongs to the
// assignment flow.
func (h *CourierHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := courierFromRequest(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusForbidden, "courier identity required")
		return
	}
	var req updateAvailabilityRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	if err := h.uc.SetAvailability(r.Context(), id, domain.CourierStatus(req.Status)); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// ApprovalWebhook handles POST /webhooks/approval from the external
// document check. Not actor-authenticated; the fronting gateway restricts
// the route.
func (h *CourierHandler) ApprovalWebhook(w http.ResponseWriter, r *http.Request) {
	var req approvalWebhookRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.CourierID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier_id")
		return
	}

	if err := h.uc.ApplyApproval(r.Context(), req.CourierID, domain.ApprovalStatus(req.Decision)); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func courierFromRequest(r *http.Request) (int64, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return 0, false
	}
	return actor.CourierID()
}
