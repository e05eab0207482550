// Package handler exposes the lifecycle service over HTTP.
package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"gozon/internal/auth"
	"gozon/internal/metrics"
	"gozon/internal/service"
)

type Options struct {
	Service        *service.Service
	Auth           *auth.Authenticator
	Metrics        *metrics.ServerMetrics
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	// RateLimit is requests per second per actor; zero disables limiting.
	RateLimit rate.Limit
	RateBurst int
	Now       func() time.Time
}

type Handler struct {
	svc            *service.Service
	auth           *auth.Authenticator
	metrics        *metrics.ServerMetrics
	metricsHandler http.Handler
	timeout        time.Duration
	limit          rate.Limit
	burst          int
	now            func() time.Time

	mu        sync.Mutex
	limiters  map[int64]*actorLimiter
	lastSweep time.Time
}

func New(opts Options) *Handler {
	h := &Handler{
		svc:            opts.Service,
		auth:           opts.Auth,
		metrics:        opts.Metrics,
		metricsHandler: opts.MetricsHandler,
		timeout:        opts.RequestTimeout,
		limit:          opts.RateLimit,
		burst:          opts.RateBurst,
		now:            opts.Now,
		limiters:       make(map[int64]*actorLimiter),
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(h.requestID, h.instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "no such route"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.metricsHandler != nil {
		r.Handle("/metrics", h.metricsHandler).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(h.withTimeout, h.authenticate, h.rateLimit)

	api.HandleFunc("/orders/create", h.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/list", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/list/pending", h.ListPendingOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/validate/{id}", h.ValidateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/list/actual", h.ListActive).Methods(http.MethodGet)
	api.HandleFunc("/orders/actual/edit/{id}", h.EditService).Methods(http.MethodPatch)
	api.HandleFunc("/orders/actual/renew/{id}", h.RenewService).Methods(http.MethodPost)
	api.HandleFunc("/orders/actual/terminate/{id}", h.TerminateService).Methods(http.MethodDelete)

	api.HandleFunc("/me/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/me/my-services", h.MyServices).Methods(http.MethodGet)
	api.HandleFunc("/me/my-orders", h.ListMyOrders).Methods(http.MethodGet)

	api.HandleFunc("/products/list", h.ListProducts).Methods(http.MethodGet)

	api.HandleFunc("/admin/staff/{id}", h.DeleteStaff).Methods(http.MethodDelete)
	api.HandleFunc("/admin/customer/{id}", h.DeleteCustomer).Methods(http.MethodDelete)

	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)

	return r
}
