package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/auth"
	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/internal/metrics"
	"github.com/shkarik/ordering/internal/ratelimit"
	"github.com/shkarik/ordering/internal/stats"
	"github.com/shkarik/ordering/internal/store"
)

// Per-IP request budgets per minute, matching the deployment the API grew up
// with.
const (
	createOrderRate  = 10
	feedRate         = 60
	updateStatusRate = 30
)

type Server struct {
	store    store.Store
	machine  *lifecycle.Machine
	sessions *auth.Manager
	limiter  *ratelimit.Limiter
	stats    stats.Provider
	logger   *logrus.Logger
}

// New wires the HTTP surface. limiter and statsProvider may be nil (dev
// runs); the matching endpoints then skip limiting or answer 503.
func New(st store.Store, machine *lifecycle.Machine, sessions *auth.Manager, limiter *ratelimit.Limiter, statsProvider stats.Provider, logger *logrus.Logger) *Server {
	return &Server{
		store:    st,
		machine:  machine,
		sessions: sessions,
		limiter:  limiter,
		stats:    statsProvider,
		logger:   logger,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/create-order/", s.CreateOrder).Methods("POST")
	router.HandleFunc("/cancel-order/", s.CancelOrder).Methods("POST")
	router.HandleFunc("/order-status/", s.OrderStatus).Methods("GET")

	router.HandleFunc("/api/orders/", s.ChefOrders).Methods("GET")
	router.HandleFunc("/api/courier/", s.CourierOrders).Methods("GET")
	router.HandleFunc("/api/update/", s.UpdateStatus).Methods("POST")
	router.HandleFunc("/api/stats/", s.OwnerStats).Methods("GET")

	router.HandleFunc("/chef/login/", s.loginHandler(lifecycle.RoleChef)).Methods("POST")
	router.HandleFunc("/chef/logout/", s.Logout).Methods("POST")
	router.HandleFunc("/courier/login/", s.loginHandler(lifecycle.RoleCourier)).Methods("POST")
	router.HandleFunc("/courier/logout/", s.Logout).Methods("POST")

	router.Use(s.loggingMiddleware)

	return router
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "orderd",
	})
}

// session resolves the request's session cookie, if any.
func (s *Server) session(r *http.Request) (*auth.Session, error) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return nil, nil
	}
	return s.sessions.Resolve(r.Context(), cookie.Value)
}

func (s *Server) isOwner(r *http.Request) bool {
	token := s.sessions.Credentials().OwnerToken
	return token != "" && r.Header.Get("X-Owner-Token") == token
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, name string, perMinute int, message string) bool {
	if s.limiter == nil || s.limiter.Allow(r, name, perMinute) {
		return true
	}
	s.respondWithError(w, http.StatusTooManyRequests, message)
	return false
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(sw, r)

		metrics.HTTPRequests.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(sw.code)).Inc()
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"code":     sw.code,
			"duration": time.Since(start).Milliseconds(),
		}).Info("Request completed")
	})
}
