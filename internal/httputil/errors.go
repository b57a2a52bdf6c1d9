package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

// APIError matches the OpenAI error response format.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
		},
	})
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteUnknownStyleError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "unknown_style", message)
}

func WriteCreditsExhaustedError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusPaymentRequired, "credit_error", "credits_exhausted", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

// WriteUpstreamError maps a classified upstream failure kind onto the
// caller-facing status code.
func WriteUpstreamError(w http.ResponseWriter, requestID string, kind upstream.Kind, message string) {
	switch kind {
	case upstream.KindTimeout:
		WriteError(w, requestID, http.StatusGatewayTimeout, "upstream_error", "timeout", message)
	case upstream.KindRateLimited:
		WriteError(w, requestID, http.StatusTooManyRequests, "upstream_error", "rate_limited", message)
	case upstream.KindAuthError:
		WriteError(w, requestID, http.StatusBadGateway, "upstream_error", "auth_error", message)
	case upstream.KindMalformedResponse:
		WriteError(w, requestID, http.StatusBadGateway, "upstream_error", "malformed_response", message)
	default:
		WriteError(w, requestID, http.StatusBadGateway, "upstream_error", "server_error", message)
	}
}
