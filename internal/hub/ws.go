package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/logx"
)

// Actions are the courier operations reachable over the push channel. They
// mirror the HTTP surface; both paths resolve against the same stores.
type Actions interface {
	AcceptOffer(ctx context.Context, courierID int64, orderID string) error
	RejectOffer(ctx context.Context, courierID int64, orderID string) error
	UpdateLocation(ctx context.Context, courierID int64, loc domain.Location) error
	UpdateAvailability(ctx context.Context, courierID int64, status domain.CourierStatus) error
}

type wsActorContextKey struct{}

// clientFrame is one client→server message.
type clientFrame struct {
	Action  string          `json:"action"`
	OrderID string          `json:"order_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type locationPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type availabilityPayload struct {
	Status string `json:"status"`
}

type wsError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const maxDecodeErrorsPerConn = 5

// WSHandler serves GET /ws. Identity arrives from the auth layer via
// headers (or query parameters for clients that cannot set headers on a
// websocket dial) and is trusted per the external identity contract.
func WSHandler(h *Hub, actions Actions, logger logx.Logger) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		actor, _ := conn.Request().Context().Value(wsActorContextKey{}).(domain.Actor)
		serveConn(conn, h, actions, actor, logger)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromRequest(r)
		if !actor.Valid() {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), wsActorContextKey{}, actor)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromRequest(r *http.Request) domain.Actor {
	id := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	role := strings.TrimSpace(r.Header.Get("X-Actor-Role"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("actor"))
		role = strings.TrimSpace(r.URL.Query().Get("role"))
	}
	return domain.Actor{Role: domain.ActorRole(role), ID: id}
}

func serveConn(conn *websocket.Conn, h *Hub, actions Actions, actor domain.Actor, logger logx.Logger) {
	defer func() {
		_ = conn.Close()
	}()

	s := h.Connect(actor, json.NewEncoder(conn), conn.Close)
	defer h.Disconnect(actor, s)

	decoder := json.NewDecoder(conn)
	decodeErrors := 0

	for {
		var frame clientFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			decodeErrors++
			writeWSError(s, "invalid_message_format", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		handleFrame(conn.Request().Context(), s, actions, actor, frame, logger)
	}
}

func handleFrame(ctx context.Context, s *session, actions Actions, actor domain.Actor, frame clientFrame, logger logx.Logger) {
	courierID, isCourier := actor.CourierID()
	if !isCourier {
		writeWSError(s, "forbidden", "courier channel required for actions")
		return
	}

	var err error
	switch frame.Action {
	case "accept_offer":
		err = actions.AcceptOffer(ctx, courierID, frame.OrderID)
	case "reject_offer":
		err = actions.RejectOffer(ctx, courierID, frame.OrderID)
	case "update_location":
		var p locationPayload
		if jsonErr := json.Unmarshal(frame.Payload, &p); jsonErr != nil {
			writeWSError(s, "invalid_message_format", "invalid location payload")
			return
		}
		err = actions.UpdateLocation(ctx, courierID, domain.Location{Lat: p.Lat, Lon: p.Lon})
	case "update_availability":
		var p availabilityPayload
		if jsonErr := json.Unmarshal(frame.Payload, &p); jsonErr != nil {
			writeWSError(s, "invalid_message_format", "invalid availability payload")
			return
		}
		err = actions.UpdateAvailability(ctx, courierID, domain.CourierStatus(p.Status))
	default:
		writeWSError(s, "invalid_message_format", "unsupported action")
		return
	}

	if err != nil {
		writeWSError(s, wsErrorCode(err), err.Error())
		if !apperr.IsExpected(err) && !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrInvalid) {
			logger.Error("ws action failed",
				logx.String("actor", actor.Key()),
				logx.String("action", frame.Action),
				logx.Err(err),
			)
		}
	}
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrAlreadyAssigned):
		return "offer_no_longer_valid"
	case errors.Is(err, apperr.ErrOfferExpired):
		return "offer_expired"
	case errors.Is(err, apperr.ErrOrderCancelled):
		return "order_cancelled"
	case errors.Is(err, apperr.ErrNotApproved):
		return "not_approved"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalid):
		return "invalid_request"
	default:
		return "internal_error"
	}
}

// writeWSError goes through the session lock so error frames cannot
// interleave with hub pushes on the same connection.
func writeWSError(s *session, code, message string) {
	_ = s.send(wsError{Type: "error", Code: code, Message: message})
}
