// Package models defines the core domain models for multi-platform content workflows.
package models

import "errors"

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformX        Platform = "x"
)

// KnownPlatforms lists every platform the engine can drive.
var KnownPlatforms = []Platform{PlatformLinkedIn, PlatformX}

// ErrUnknownPlatform is returned when a platform identifier is not recognized.
var ErrUnknownPlatform = errors.New("unknown platform")

// ParsePlatform validates a raw platform identifier.
func ParsePlatform(raw string) (Platform, error) {
	for _, p := range KnownPlatforms {
		if string(p) == raw {
			return p, nil
		}
	}

	return "", ErrUnknownPlatform
}

// PlatformStatus is the lifecycle status of one platform inside a workflow.
type PlatformStatus string

const (
	PlatformStatusPending        PlatformStatus = "pending"         // Drafts being generated
	PlatformStatusAwaitingReview PlatformStatus = "awaiting_review" // Waiting for human action
	PlatformStatusAccepted       PlatformStatus = "accepted"        // Human accepted final draft
	PlatformStatusRejected       PlatformStatus = "rejected"        // Human rejected platform entirely
	PlatformStatusScheduled      PlatformStatus = "scheduled"       // Accepted and scheduled
	PlatformStatusPublished      PlatformStatus = "published"       // Successfully published
	PlatformStatusFailed         PlatformStatus = "failed"          // Publishing failed
)

// Terminal reports whether no further automatic AI processing occurs for this
// status. Accepted and scheduled platforms are quasi-terminal: review is over
// but publication bookkeeping is still pending.
func (s PlatformStatus) Terminal() bool {
	switch s {
	case PlatformStatusRejected, PlatformStatusPublished, PlatformStatusFailed:
		return true
	default:
		return false
	}
}

// ReviewActive reports whether the platform still blocks workflow completion.
// Accepted platforms stay active until a publishing job moves them on.
func (s PlatformStatus) ReviewActive() bool {
	switch s {
	case PlatformStatusPending, PlatformStatusAwaitingReview, PlatformStatusAccepted:
		return true
	default:
		return false
	}
}
