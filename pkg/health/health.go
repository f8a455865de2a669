// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Status is the state of one check or of the whole service.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
	// StatusDegraded means only optional dependencies are failing. The
	// service still reports ready.
	StatusDegraded Status = "degraded"
)

// Response is the JSON body of both probe endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status    Status `json:"status"`
	Optional  bool   `json:"optional,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type registration struct {
	check    Checker
	optional bool
}

// Handler runs registered checks for the probe endpoints.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
	now     func() time.Time
}

// NewHandler creates a handler whose checks share a 5s deadline.
func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]registration),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Register adds a required check. A failing required check makes the
// service not ready. Registering a name again replaces the earlier check.
func (h *Handler) Register(name string, check Checker) {
	h.register(name, registration{check: check})
}

// RegisterOptional adds a check for a dependency the service can run
// without. Its failure degrades the status but keeps readiness.
func (h *Handler) RegisterOptional(name string, check Checker) {
	h.register(name, registration{check: check, optional: true})
}

func (h *Handler) register(name string, r registration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = r
}

// Names returns the registered check names in sorted order.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check concurrently and aggregates the result.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]registration, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, reg := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := h.run(ctx, reg)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Response{
		Status:    overall(results),
		Timestamp: h.now().UTC(),
		Checks:    results,
	}
}

func (h *Handler) run(ctx context.Context, reg registration) CheckResult {
	start := h.now()
	err := reg.check(ctx)
	res := CheckResult{
		Status:    StatusUp,
		Optional:  reg.optional,
		LatencyMS: h.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

func overall(results map[string]CheckResult) Status {
	status := StatusUp
	for _, r := range results {
		if r.Status != StatusDown {
			continue
		}
		if !r.Optional {
			return StatusDown
		}
		status = StatusDegraded
	}
	return status
}

// LivenessHandler answers 200 while the process is serving.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: h.now().UTC(),
		})
	}
}

// ReadinessHandler runs the checks and answers 503 when a required one
// fails.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())

		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Cache-Control", "no-store")
		writeResponse(w, status, resp)
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
