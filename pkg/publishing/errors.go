// Package publishing owns the publishing job ledger: job creation after
// human acceptance, the polling scheduler and the job executor.
package publishing

import "errors"

var (
	// ErrPlatformNotAccepted is returned when a job is requested for a
	// platform without an accepted draft.
	ErrPlatformNotAccepted = errors.New("platform has no accepted content to publish")

	// ErrNoActiveDraft is returned when the accepted platform has no active
	// draft pointer. This indicates state corruption and is never expected.
	ErrNoActiveDraft = errors.New("platform has no active draft")

	// ErrJobNotPending is returned when cancel or reschedule targets a job
	// that already left the pending state.
	ErrJobNotPending = errors.New("publishing job is not pending")

	// ErrJobNotReschedulable is returned when reschedule targets a job that is
	// neither pending nor cancelled.
	ErrJobNotReschedulable = errors.New("publishing job can no longer be rescheduled")

	// ErrNoPublisher is returned when no publisher is registered for the
	// job's platform.
	ErrNoPublisher = errors.New("no publisher registered for platform")

	// ErrPublishAtPast is returned when a scheduled time is in the past.
	ErrPublishAtPast = errors.New("publish time must be in the future")
)

// IsConflictError checks if an error indicates a job lifecycle conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPlatformNotAccepted) ||
		errors.Is(err, ErrJobNotPending) ||
		errors.Is(err, ErrJobNotReschedulable)
}

// IsValidationError checks if an error should surface as a client validation
// failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPublishAtPast)
}
