package httppresentation

import (
	"net/http"

	appOrder "github.com/Zhima-Mochi/minishop-settlement/internal/application/order"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	lines := make([]appOrder.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, appOrder.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	result, err := h.uc.CreateOrder.Execute(r.Context(), appOrder.CreateOrderInput{
		Actor:           actorFrom(r.Context()),
		ShippingAddress: req.ShippingAddress,
		Items:           lines,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	orders, err := h.uc.ListOrders.Execute(r.Context(), appOrder.ListOrdersInput{
		Actor:  actorFrom(r.Context()),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.GetOrder.Execute(r.Context(), appOrder.GetOrderInput{
		Actor:   actorFrom(r.Context()),
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
