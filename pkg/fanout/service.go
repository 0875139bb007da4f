// Package fanout is the sole consumer of the event channel. It pushes each
// status event to every live connection owned by that event's user.
//
// There is no buffering, delivery guarantee or client acknowledgment; the
// gateway's read paths are the compensating mechanism for missed events.
package fanout

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/auth"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/bus"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the typed push format delivered to clients.
type Envelope struct {
	Type string            `json:"type"`
	Data *core.StatusEvent `json:"data"`
}

const envelopeOrderUpdate = "ORDER_UPDATE"

type Service struct {
	hub    *Hub
	secret string
	log    *zap.SugaredLogger
}

func NewService(secret string, log *zap.SugaredLogger) *Service {
	return &Service{hub: NewHub(log), secret: secret, log: log}
}

func (s *Service) Hub() *Hub { return s.hub }

// Start runs the hub, subscribes to the event channel and serves the
// WebSocket endpoint.
func (s *Service) Start(ctx context.Context, addr string, b bus.Bus) error {
	go s.hub.Run(ctx)

	if err := b.Subscribe(ctx, core.TopicStatus, s.OnStatusEvent); err != nil {
		return err
	}

	s.log.Infow("fanout_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")
	return r
}

// handleWebSocket authenticates the connection parameter token and registers
// the connection under the token's user. A missing or invalid token closes
// the connection with a policy-violation code.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		closePolicyViolation(conn, "token required")
		return
	}
	userID, err := auth.Verify(s.secret, token)
	if err != nil {
		closePolicyViolation(conn, "invalid token")
		return
	}

	client := newClient(s.hub, conn, userID)
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	conn.Close()
}

// OnStatusEvent decodes a status event and pushes it to the event user's
// connections. Unknown payloads are dropped at the boundary.
func (s *Service) OnStatusEvent(_ context.Context, payload []byte) {
	ev, err := core.DecodeStatusEvent(payload)
	if err != nil {
		s.log.Warnw("status_event_invalid", "err", err)
		return
	}

	data, err := json.Marshal(Envelope{Type: envelopeOrderUpdate, Data: ev})
	if err != nil {
		s.log.Errorw("envelope_encode_failed", "order_id", ev.OrderID, "err", err)
		return
	}

	if n := s.hub.PushToUser(ev.UserID, data); n > 0 {
		s.log.Infow("event_pushed", "user_id", ev.UserID, "order_id", ev.OrderID, "connections", n)
	}
}
