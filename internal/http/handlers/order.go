package handlers

import (
	"net/http"
	"strconv"

	"driverlink/internal/domain"
	"driverlink/internal/http/middleware"
	"driverlink/internal/logx"
)

// OrderHandler serves HTTP endpoints for order resources and the courier
// decision endpoints that resolve offers.
type OrderHandler struct {
	orders   ordersUsecase
	dispatch dispatchUsecase
	logger   logx.Logger
}

// NewOrderHandler wires the order and dispatch usecases into HTTP handlers.
func NewOrderHandler(orders ordersUsecase, dispatch dispatchUsecase, logger logx.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, dispatch: dispatch, logger: logger}
}

func actorFromRequest(logger logx.Logger, w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		writeError(logger, w, r, http.StatusForbidden, "actor identity required")
		return domain.Actor{}, false
	}
	return actor, true
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	o, err := h.orders.Create(r.Context(), actor, toCreateInput(req))
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, toOrderResponse(o))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	id, err := orderIDFromURL(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	o, err := h.orders.Get(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderResponse(o))
}

// List handles GET /orders with optional status, limit and offset query
// parameters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var limit, offset int
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	if s := q.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = v
	}

	list, err := h.orders.List(r.Context(), actor, domain.OrderStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderResponses(list))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	id, err := orderIDFromURL(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	o, err := h.orders.Cancel(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderResponse(o))
}

// UpdateStatus handles PUT /orders/{id}/status for the bound courier.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	id, err := orderIDFromURL(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateOrderStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), actor, id, domain.OrderStatus(req.Status))
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderResponse(o))
}

// Accept handles POST /orders/{id}/accept for a courier holding an offer.
// First accept wins; everyone else learns why they lost.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject handles POST /orders/{id}/reject.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *OrderHandler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	courierID, ok := actor.CourierID()
	if !ok {
		writeError(h.logger, w, r, http.StatusForbidden, "courier identity required")
		return
	}
	id, err := orderIDFromURL(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	if accept {
		err = h.dispatch.Accept(r.Context(), courierID, id)
	} else {
		err = h.dispatch.Reject(r.Context(), courierID, id)
	}
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	status := "rejected"
	if accept {
		status = "accepted"
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": status})
}

// StoreStats handles GET /stats/orders for the acting store.
func (h *OrderHandler) StoreStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	stats, err := h.orders.OrderStats(r.Context(), actor)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, stats)
}

// CourierStats handles GET /stats/couriers for the acting courier.
func (h *OrderHandler) CourierStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(h.logger, w, r)
	if !ok {
		return
	}
	stats, err := h.orders.CourierStatsFor(r.Context(), actor)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, stats)
}
