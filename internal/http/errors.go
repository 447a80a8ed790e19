package httpx

import (
	"errors"
	"net/http"

	"github.com/gooji/deployer/internal/domain"
)

// statusFor maps an error kind to an HTTP status. Kinds without a fixed status
// use the endpoint's fallback.
func statusFor(err error, fallback int) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return fallback
	}
}

// errorDetail picks the value exposed in the "error" field. Errors the client
// cannot act on are replaced by fallbackMsg.
func errorDetail(err error, fallbackMsg string) any {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if perr, ok := domain.AsProviderError(err); ok {
		return perr.Detail()
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "Email already exists"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid or expired token"
	}
	return fallbackMsg
}

// fail logs err and writes the mapped error response.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error, fallbackStatus int, fallbackMsg string) {
	status := statusFor(err, fallbackStatus)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
	} else {
		r.logger.Warn("request rejected", "path", req.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, errorDetail(err, fallbackMsg))
}
