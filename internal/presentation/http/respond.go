package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	domainInventory "github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability/logctx"
)

const internalErrorMessage = "internal server error"

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return application.NewValidation("request body is required")
		}
		return application.NewValidation("invalid JSON body: %v", err)
	}
	if decoder.More() {
		return application.NewValidation("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound),
		errors.Is(err, domainPayment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainPayment.ErrAlreadySettled),
		errors.Is(err, domainPayment.ErrConflict),
		errors.Is(err, domainPayment.ErrInvalidTransition),
		errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, domainOrder.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domainInventory.ErrInvalidQuantity),
		errors.Is(err, domainInventory.ErrInsufficientStock),
		errors.Is(err, domainInventory.ErrInactive),
		errors.Is(err, domainOrder.ErrNoItems),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainPayment.ErrUnsupportedProvider),
		errors.Is(err, domainPayment.ErrGateway),
		errors.Is(err, domainPayment.ErrNotConfirmed),
		errors.Is(err, domainPayment.ErrInvalidSignature),
		errors.Is(err, domainPayment.ErrMalformedEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps the error taxonomy to a status code. Unmapped errors
// are logged and answered with a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logctx.FromOr(r.Context(), observability.NopLogger()).Error("http_internal_error",
			observability.F("error", err),
		)
		writeError(w, status, internalErrorMessage)
		return
	}
	writeError(w, status, err.Error())
}

// pageParams reads limit/offset; clamping happens in the use case.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, application.NewValidation("limit must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, application.NewValidation("offset must be an integer")
		}
	}
	if limit < 0 || offset < 0 {
		return 0, 0, application.NewValidation("limit and offset must not be negative")
	}
	return limit, offset, nil
}
