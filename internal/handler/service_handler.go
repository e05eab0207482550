package handler

import (
	"net/http"

	"gozon/internal/domain"
)

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.ListActive(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toServices(services))
}

func (h *Handler) EditService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req editServiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Edit(r.Context(), actorFrom(r), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "service updated"})
}

func (h *Handler) RenewService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := h.svc.Renew(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	writeJSON(w, http.StatusOK, toService(domain.ServiceView{
		ActiveService: svc,
		RuntimeStatus: svc.RuntimeStatusAt(now),
		DaysRemaining: svc.DaysRemainingAt(now),
	}))
}

func (h *Handler) TerminateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Terminate(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "service terminated"})
}

func (h *Handler) MyServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.ListMine(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toServices(services))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		ActiveServices: stats.ActiveCount,
		PendingOrders:  stats.PendingOrderCount,
		TotalSpent:     stats.TotalSpent,
	})
}
