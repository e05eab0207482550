package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gozon/internal/domain"
	"gozon/internal/logging"
)

const logService = "order-service"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps err to its HTTP status. Internal causes are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		f := logging.Fields{
			Service:   logService,
			RequestID: requestIDFrom(r.Context()),
			Step:      r.Method + " " + r.URL.Path,
			Status:    "error",
			Error:     err.Error(),
		}
		if actor, ok := domain.ActorFrom(r.Context()); ok {
			f.ActorID = actor.ID
		}
		logging.Log(f)
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: string(kind), Message: domain.PublicMessage(err)})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.BadRequest("invalid request body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.BadRequest("id must be a positive integer")
	}
	return id, nil
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := domain.ActorFrom(r.Context())
	return actor
}
