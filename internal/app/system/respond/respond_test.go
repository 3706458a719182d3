package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"go.uber.org/zap"
)

type envelope struct {
	Data  any `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"count": 3})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	env := decode(t, rec)
	if env.Data == nil || env.Error != nil {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestError_CodedError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/orders/1/reject", nil)

	Error(rec, req, zap.NewNop(), apierr.Validation("rejection reason is required").
		WithDetails(map[string]string{"reason": "is required"}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	env := decode(t, rec)
	if env.Error == nil {
		t.Fatal("expected error envelope")
	}
	if env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", env.Error.Code)
	}
	if env.Error.Message != "rejection reason is required" {
		t.Errorf("message = %q", env.Error.Message)
	}
	if env.Error.Details == nil {
		t.Error("validation details should be included")
	}
}

func TestError_UncodedErrorIsHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/users", nil)

	Error(rec, req, zap.NewNop(), errors.New("connection string has password=hunter2"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	env := decode(t, rec)
	if env.Error.Message != "internal server error" {
		t.Errorf("internal error text leaked: %q", env.Error.Message)
	}
}

func TestError_PlainMessageClassified(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/users/abc", nil)

	Error(rec, req, zap.NewNop(), errors.New("Forbidden: support admins cannot delete users"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	env := decode(t, rec)
	if env.Error.Code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", env.Error.Code)
	}
	if strings.Contains(env.Error.Message, "support admins") {
		t.Errorf("raw message leaked: %q", env.Error.Message)
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if env := decode(t, rec); env.Error == nil || env.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("unexpected envelope: %s", rec.Body.String())
	}
}
