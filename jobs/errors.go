package jobs

import "errors"

var (
	// ErrJobNotFound indicates the job ID is unknown to the registry.
	ErrJobNotFound = errors.New("job not found")

	// ErrTooManyJobs indicates the registry is running its maximum number of jobs.
	ErrTooManyJobs = errors.New("too many running jobs")

	// ErrNilWorkload indicates Start was called without a workload.
	ErrNilWorkload = errors.New("workload is required")

	// ErrWorkloadPanic wraps a panic recovered from a workload.
	ErrWorkloadPanic = errors.New("workload panicked")
)
