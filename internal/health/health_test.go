package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	Healthz()(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("status field = %q, want ok", res.Status)
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()
	handler := Readyz(
		Checker{Name: "session", Check: func(context.Context) error { return nil }},
		Checker{Name: "agent", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"session":"ok"`) {
		t.Errorf("body missing session check: %s", rec.Body.String())
	}
}

func TestReadyz_FailingCheckReturns503(t *testing.T) {
	t.Parallel()
	handler := Readyz(
		Checker{Name: "session", Check: func(context.Context) error { return errors.New("no session active") }},
	)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"fail"`) {
		t.Errorf("body missing fail status: %s", body)
	}
	if !strings.Contains(body, "no session active") {
		t.Errorf("body missing failure detail: %s", body)
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	Readyz()(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
