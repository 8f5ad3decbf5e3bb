// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID.
// IDs are opaque UUID strings, stable for the lifetime of the job.
func Generate() string {
	return uuid.NewString()
}
