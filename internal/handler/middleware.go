package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"gozon/internal/auth"
	"gozon/internal/domain"
	"gozon/internal/logging"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		if h.metrics != nil {
			h.metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			h.metrics.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
		}
		logging.Log(logging.Fields{
			Service:    logService,
			RequestID:  requestIDFrom(r.Context()),
			Step:       r.Method + " " + route,
			Status:     strconv.Itoa(rec.status),
			DurationMS: elapsed.Milliseconds(),
		})
	})
}

func (h *Handler) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.timeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, claims, err := h.auth.Authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := domain.WithActor(r.Context(), actor)
		ctx = auth.WithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// limiterIdle is how long an actor's limiter survives without requests.
const limiterIdle = 10 * time.Minute

type actorLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

func (h *Handler) limiterFor(actorID int64) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	if now.Sub(h.lastSweep) >= limiterIdle {
		for id, l := range h.limiters {
			if now.Sub(l.lastSeen) >= limiterIdle {
				delete(h.limiters, id)
			}
		}
		h.lastSweep = now
	}
	l, ok := h.limiters[actorID]
	if !ok {
		l = &actorLimiter{Limiter: rate.NewLimiter(h.limit, h.burst)}
		h.limiters[actorID] = l
	}
	l.lastSeen = now
	return l.Limiter
}

// rateLimit throttles each authenticated actor separately.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !h.limiterFor(actorFrom(r).ID).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
