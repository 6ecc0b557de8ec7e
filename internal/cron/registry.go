package cron

import "context"

// Job is one scheduled task the cron worker runs each cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a cron service cycles through.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs, skipping nils.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{jobs: make([]Job, 0, len(jobs))}
	for _, job := range jobs {
		if job != nil {
			r.jobs = append(r.jobs, job)
		}
	}
	return r
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
