package scheduler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
)

// rfc3339Millis formats time with milliseconds.
func rfc3339Millis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// RegisterRoutes wires scheduler routes to the router.
func RegisterRoutes(router chi.Router, runner *Runner) {
	router.Method(http.MethodGet, "/v1/jobs", api.Handler(listJobs(runner)))
	router.Method(http.MethodPost, "/v1/jobs/{name}/run", api.Handler(runJob(runner)))
}

// listJobs handles GET /v1/jobs
func listJobs(runner *Runner) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		statuses := runner.Status()
		data := make([]map[string]any, 0, len(statuses))
		for _, s := range statuses {
			data = append(data, formatStatus(s))
		}
		return api.WriteList(w, r.URL.Path, data, false)
	}
}

// runJob handles POST /v1/jobs/{name}/run. The job runs inline and its
// outcome is reported in the response.
func runJob(runner *Runner) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		name := chi.URLParam(r, "name")
		err := runner.RunNow(r.Context(), name)
		if errors.Is(err, ErrJobNotFound) {
			return apperrors.NewNotFoundResource("job", name)
		}

		result := map[string]any{
			"object":  "job_run",
			"name":    name,
			"success": err == nil,
		}
		if err != nil {
			result["error"] = err.Error()
		}
		return api.WriteAction(w, http.StatusOK, result)
	}
}

func formatStatus(s JobStatus) map[string]any {
	result := map[string]any{
		"object":   "job",
		"name":     s.Name,
		"spec":     s.Spec,
		"runs":     s.Runs,
		"failures": s.Failures,
	}
	if !s.LastRunAt.IsZero() {
		result["last_run_at"] = rfc3339Millis(s.LastRunAt)
	}
	if s.LastError != "" {
		result["last_error"] = s.LastError
	}
	if !s.NextRunAt.IsZero() {
		result["next_run_at"] = rfc3339Millis(s.NextRunAt)
	}
	return result
}
