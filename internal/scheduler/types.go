package scheduler

import (
	"context"
	"time"
)

// Job is a named housekeeping task run on a cron schedule.
type Job struct {
	Name string
	// Spec is a 5-field cron expression or a descriptor such as "@every 10s".
	Spec string
	Run  func(ctx context.Context) error
}

// JobStatus reports the last outcome of a job.
type JobStatus struct {
	Name      string    `json:"name"`
	Spec      string    `json:"spec"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`
	NextRunAt time.Time `json:"next_run_at"`
}
