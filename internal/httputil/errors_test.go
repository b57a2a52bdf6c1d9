package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req_123", http.StatusBadRequest, "invalid_request_error", "invalid_request", "test message")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	if rid := w.Header().Get("X-Request-ID"); rid != "req_123" {
		t.Errorf("expected X-Request-ID req_123, got %s", rid)
	}

	var resp APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Error.Message != "test message" {
		t.Errorf("expected message 'test message', got %q", resp.Error.Message)
	}
	if resp.Error.Type != "invalid_request_error" {
		t.Errorf("expected type 'invalid_request_error', got %q", resp.Error.Type)
	}
	if resp.Error.RequestID != "req_123" {
		t.Errorf("expected request_id 'req_123', got %q", resp.Error.RequestID)
	}
}

func TestWriteUnknownStyleError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnknownStyleError(w, "req_456", "unknown reasoning style: \"bogus\"")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var resp APIError
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "unknown_style" {
		t.Errorf("expected code 'unknown_style', got %q", resp.Error.Code)
	}
}

func TestWriteCreditsExhaustedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreditsExhaustedError(w, "req_789", "No credits remaining")

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("expected status 402, got %d", w.Code)
	}

	var resp APIError
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "credits_exhausted" {
		t.Errorf("expected code 'credits_exhausted', got %q", resp.Error.Code)
	}
}

func TestWriteUpstreamError_StatusMapping(t *testing.T) {
	tests := []struct {
		kind       upstream.Kind
		wantStatus int
		wantCode   string
	}{
		{upstream.KindTimeout, http.StatusGatewayTimeout, "timeout"},
		{upstream.KindRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{upstream.KindAuthError, http.StatusBadGateway, "auth_error"},
		{upstream.KindMalformedResponse, http.StatusBadGateway, "malformed_response"},
		{upstream.KindServerError, http.StatusBadGateway, "server_error"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteUpstreamError(w, "req_1", tt.kind, "msg")

		if w.Code != tt.wantStatus {
			t.Errorf("kind %s: expected status %d, got %d", tt.kind, tt.wantStatus, w.Code)
		}
		var resp APIError
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Error.Code != tt.wantCode {
			t.Errorf("kind %s: expected code %q, got %q", tt.kind, tt.wantCode, resp.Error.Code)
		}
	}
}
