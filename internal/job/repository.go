package job

import "context"

// Repository defines the interface for job persistence.
// It acts as a port in the hexagonal architecture pattern.
//
// Implementations own all concurrency control: Update is the atomic
// per-id read-modify-write, and no lock may be held while callers perform
// network I/O. Jobs returned by any method are clones; mutating them does
// not affect stored state.
type Repository interface {
	// Create persists a new job. Returns ErrJobExists if the ID is taken.
	Create(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// Update atomically applies fn to the stored job and returns the
	// resulting state. fn receives a working copy; if fn returns an error
	// the stored job is left untouched and the error is returned.
	// Returns ErrNotFound if the job does not exist.
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)

	// List returns all jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job from storage.
	// Returns ErrNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
