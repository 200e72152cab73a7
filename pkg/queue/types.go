package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// Queue names on the shared store.
const (
	QueueWhatsAppMessages = "whatsapp-messages"
	QueueIdleSessionCheck = "idle-session-check"
)

var (
	// ErrNoJobsAvailable signals an empty queue poll.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrDuplicateJob signals that a job with the same ID was already
	// enqueued; duplicates collapse into one logical processing.
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrJobNotFound signals a missing job (DLQ retry of an unknown ID).
	ErrJobNotFound = errors.New("job not found")
)

// Job is one queued unit of work. ID equals the inbound messageId, which
// gives at-most-once logical processing per message.
type Job struct {
	ID         string               `json:"id"`
	Message    models.ParsedMessage `json:"message"`
	Attempts   int                  `json:"attempts"`
	Stalls     int                  `json:"stalls"`
	EnqueuedAt time.Time            `json:"enqueuedAt"`
	LastError  string               `json:"lastError,omitempty"`
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
	DLQ     int64 `json:"dlq"`
}

// Processor handles one job. Errors wrapped with Retryable follow the
// retry/backoff policy; anything else is treated as permanent and lands in
// the DLQ immediately.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// retryableError marks an error as transient.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps an error so the queue retries it with backoff.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether the error carries the transient marker.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
