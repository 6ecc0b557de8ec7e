// Package env reads the handful of process variables that sit outside the
// typed config: deploy-platform values that exist before config loads.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
