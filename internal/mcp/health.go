package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 3 * time.Second

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Chunks    *int   `json:"chunks,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// IndexSizer is implemented by checkers that can also report the index size.
type IndexSizer interface {
	IndexSize(ctx context.Context) (int, error)
}

// NewHealthHandler serves store health as JSON: 200 when reachable, 503 otherwise.
// When checker is also an IndexSizer the chunk count is included.
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{
			Status:    "healthy",
			Store:     "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if err := checker.Health(ctx); err != nil {
			resp.Status, resp.Store, resp.Error = "unhealthy", "disconnected", err.Error()
			code = http.StatusServiceUnavailable
		} else if sizer, ok := checker.(IndexSizer); ok {
			if n, err := sizer.IndexSize(ctx); err == nil {
				resp.Chunks = &n
			}
		}

		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
