package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/auth"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// Server exposes the gateway over REST.
type Server struct {
	gw     *Gateway
	router *mux.Router
	log    *zap.SugaredLogger
	secret string

	ratePerMin int
	muLimiters sync.Mutex
	limiters   map[string]*rate.Limiter
}

func NewServer(gw *Gateway, secret string, ratePerMin int, log *zap.SugaredLogger) *Server {
	s := &Server{
		gw:         gw,
		router:     mux.NewRouter(),
		log:        log,
		secret:     secret,
		ratePerMin: ratePerMin,
		limiters:   make(map[string]*rate.Limiter),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.Handle("/orders", s.authed(s.rateLimited(s.handleSubmitOrder))).Methods("POST")
	api.Handle("/orders", s.authed(s.handleListOrders)).Methods("GET")
	api.Handle("/orders/{id}", s.authed(s.handleCancelOrder)).Methods("DELETE")
	api.Handle("/positions", s.authed(s.handleListPositions)).Methods("GET")
	api.Handle("/balances", s.authed(s.handleBalances)).Methods("GET")
	api.Handle("/credentials", s.authed(s.handleSaveCredentials)).Methods("PUT")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start starts the REST server
func (s *Server) Start(addr string) error {
	s.log.Infow("gateway_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// Middleware
// ==============================

func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.FromRequest(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		userID, err := auth.Verify(s.secret, token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUserID, userID)))
	})
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter(userID(r)).Allow() {
			respondError(w, http.StatusTooManyRequests, "rate limited", "too many orders, please slow down")
			return
		}
		next(w, r)
	}
}

func (s *Server) limiter(user string) *rate.Limiter {
	s.muLimiters.Lock()
	defer s.muLimiters.Unlock()
	l, ok := s.limiters[user]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(s.ratePerMin)/60.0), s.ratePerMin)
		s.limiters[user] = l
	}
	return l
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.gw.SubmitOrder(r.Context(), userID(r), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	if err := s.gw.CancelOrder(r.Context(), userID(r), orderID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]string{
		"message": "Cancellation submitted",
		"orderId": orderID,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.gw.ListOrders(r.Context(), userID(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, orders)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.gw.ListPositions(r.Context(), userID(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, positions)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.gw.Balances(r.Context(), userID(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, balances)
}

func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.gw.SaveCredentials(r.Context(), userID(r), creds); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]string{"message": "credentials saved"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "validation failed", verr.Error())
	case errors.Is(err, core.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", "")
	case errors.Is(err, core.ErrOrderClosed):
		respondError(w, http.StatusBadRequest, "cannot cancel closed order", "")
	default:
		s.log.Errorw("request_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: error, Message: message})
}
