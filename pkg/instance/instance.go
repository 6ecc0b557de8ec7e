package instance

import "github.com/mieldesol/modhu-backend/pkg/env"

// GetID names this process for log correlation. Worker deployments set
// WORKER_ID explicitly; on Heroku the dyno name serves the same purpose.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	return env.Get("DYNO", "worker-0")
}
