// Package policy holds the pure timing rules for split-payment settlement:
// deadline clamping, deadline computation and the post-deadline grace window.
// Every time-based decision elsewhere in the core goes through these
// functions.
package policy

import "time"

const (
	// DefaultDeadlineHours applies when an organization has not configured a
	// split deadline, or configured one outside the allowed range.
	DefaultDeadlineHours = 48
	// MinDeadlineHours and MaxDeadlineHours bound the configurable deadline
	// (hours before event start).
	MinDeadlineHours = 2
	MaxDeadlineHours = 168

	// deadlineCapWindow caps how far into the future a deadline may land
	// relative to now, so late registrations still settle promptly.
	deadlineCapWindow = 72 * time.Hour

	// GraceWindow is granted when the gateway reports a second charge needs
	// additional user action.
	GraceWindow = 24 * time.Hour
)

// ClampDeadlineHours clamps an organization-configured deadline to the safe
// range, falling back to the default when unset or out of range.
func ClampDeadlineHours(configured *int) int {
	if configured == nil {
		return DefaultDeadlineHours
	}

	h := *configured
	if h < MinDeadlineHours || h > MaxDeadlineHours {
		return DefaultDeadlineHours
	}

	return h
}

// ComputeSplitDeadlineAt computes the partner-payment deadline:
// min(eventStartsAt - hours, now + cap). The boolean is false when the
// deadline would already have passed; callers must then treat the pairing as
// expired rather than arming it.
func ComputeSplitDeadlineAt(now, eventStartsAt time.Time, hours int) (time.Time, bool) {
	deadline := eventStartsAt.Add(-time.Duration(hours) * time.Hour)
	if capped := now.Add(deadlineCapWindow); capped.Before(deadline) {
		deadline = capped
	}

	return deadline, deadline.After(now)
}

// ComputeGraceUntil returns the end of the fixed grace window starting now.
func ComputeGraceUntil(now time.Time) time.Time {
	return now.Add(GraceWindow)
}
