package handler

import (
	"net/http"

	"gozon/internal/service"
)

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.svc.CreateOrder(r.Context(), actorFrom(r), service.CreateOrderInput{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: id, Status: "Pending", Message: "order created"})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, false)
}

func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, true)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, pendingOnly bool) {
	orders, err := h.svc.ListOrders(r.Context(), actorFrom(r), pendingOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h *Handler) ValidateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req validateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := h.svc.ValidateOrder(r.Context(), actorFrom(r), orderID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := validateOrderResponse{OrderID: orderID, Status: req.Status, Message: "order updated"}
	if svc != nil {
		resp.ServiceID = svc.ID
		resp.Message = "order delivered, service activated"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListMyOrders(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Catalog().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProducts(products))
}
