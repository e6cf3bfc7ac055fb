package httppresentation

import (
	"errors"
	"io"
	"net/http"

	appPayment "github.com/Zhima-Mochi/minishop-settlement/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if req.Amount != nil {
		logctx.FromOr(r.Context(), h.log).Warn("client_amount_ignored",
			observability.F("order_id", req.OrderID),
			observability.F("client_amount", req.Amount.String()),
		)
	}

	result, err := h.uc.CreatePayment.Execute(r.Context(), appPayment.CreatePaymentInput{
		Actor:    actorFrom(r.Context()),
		OrderID:  req.OrderID,
		Provider: req.Provider,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := toPaymentResponse(result.Payment)
	resp.ClientSecret = result.ClientSecret
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	payments, err := h.uc.ListPayments.Execute(r.Context(), appPayment.ListPaymentsInput{
		Actor:   actorFrom(r.Context()),
		OrderID: r.URL.Query().Get("order_id"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.uc.GetPayment.Execute(r.Context(), appPayment.GetPaymentInput{
		Actor:     actorFrom(r.Context()),
		PaymentID: chi.URLParam(r, "paymentID"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.uc.ConfirmPayment.Execute(r.Context(), appPayment.ConfirmPaymentInput{
		Actor:     actorFrom(r.Context()),
		PaymentID: chi.URLParam(r, "paymentID"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmPaymentResponse{
		PaymentID:     result.Payment.ID,
		Status:        result.Payment.Status,
		TransactionID: result.Payment.TransactionID,
	})
}

// handleWebhook answers 200 once a delivery is authenticated and processed,
// including no-ops, and 400 when it can never be processed.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read payload")
		return
	}

	result, err := h.uc.HandleWebhook.Execute(r.Context(), appPayment.WebhookInput{
		Provider:  chi.URLParam(r, "provider"),
		Payload:   payload,
		Signature: r.Header.Get(headerSignature),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	logctx.FromOr(r.Context(), h.log).Info("webhook_processed",
		observability.F("event_id", result.EventID),
		observability.F("outcome", result.Outcome),
	)
	writeJSON(w, http.StatusOK, webhookResponse{Received: true})
}
