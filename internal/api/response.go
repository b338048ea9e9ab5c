package api

import (
	"encoding/json"
	"net/http"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func respondErr(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("internal_error", err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(e.Kind))
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   body,
	})
}

func rateLimitedErr() error {
	return apperr.Contention("rate_limited", "too many requests")
}

func httpStatus(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindState:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindContention:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
