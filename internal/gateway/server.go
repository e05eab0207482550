package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"gozon/internal/auth"
	"gozon/internal/domain"
	"gozon/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// proxiedPrefixes are forwarded to the order service unchanged.
var proxiedPrefixes = []string{"/orders/", "/me/", "/products/", "/admin/", "/auth/"}

type Server struct {
	hub      *WSHub
	auth     *auth.Authenticator
	upstream *url.URL
	client   *http.Client
}

func NewServer(hub *WSHub, authenticator *auth.Authenticator, upstream *url.URL, timeout time.Duration) *Server {
	return &Server{
		hub:      hub,
		auth:     authenticator,
		upstream: upstream,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	for _, prefix := range proxiedPrefixes {
		mux.HandleFunc(prefix, s.proxyRequest)
	}
	return enableCORS(mux)
}

func (s *Server) proxyRequest(w http.ResponseWriter, r *http.Request) {
	target := *s.upstream
	target.Path = strings.TrimSuffix(s.upstream.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to build upstream request")
		return
	}
	req.Header = r.Header.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		logging.Log(logging.Fields{Service: logService, Step: "proxy " + r.URL.Path, Status: "bad_gateway", Error: err.Error()})
		writeError(w, http.StatusBadGateway, "bad_gateway", "order service unavailable")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// wsHandler accepts a bearer token in the token query parameter, since browsers cannot set
// headers on websocket handshakes. Only customers have an event stream to follow.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, err := s.auth.AuthenticateToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		kind := domain.KindOf(err)
		writeError(w, wsStatus(kind), string(kind), domain.PublicMessage(err))
		return
	}
	if actor.Role != domain.RoleCustomer {
		writeError(w, http.StatusForbidden, string(domain.KindForbidden), "only customers can subscribe to lifecycle events")
		return
	}
	customerID := actor.ID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log(logging.Fields{Service: logService, ActorID: customerID, Step: "ws_upgrade", Status: "error", Error: err.Error()})
		return
	}

	s.hub.AddClient(customerID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.RemoveClient(customerID, conn)
			return
		}
	}
}

func wsStatus(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
