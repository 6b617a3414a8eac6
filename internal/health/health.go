// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz — liveness probe; returns 200 whenever the process serves HTTP.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     [Checker] passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and, for readiness, a "checks" map with the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy and an error describing the failure otherwise.
type Checker struct {
	// Name labels this check in the JSON response (e.g. "session", "agent").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz returns a liveness handler that always reports ok.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, result{Status: "ok"})
	}
}

// Readyz returns a readiness handler that evaluates checkers sequentially on
// each request. Any failing check yields a 503 response naming the failures.
func Readyz(checkers ...Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(checkers))
		allOK := true

		for _, c := range checkers {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.Check(ctx)
			cancel()

			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
		}

		res := result{Status: "ok", Checks: checks}
		status := http.StatusOK
		if !allOK {
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, res)
	}
}

// writeJSON encodes v as JSON with the given status code. On encoding failure
// it falls back to a plain 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
