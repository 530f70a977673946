package syncer

import (
	"time"
)

// Trigger is the source of a sync request.
type Trigger string

const (
	TriggerAuto          Trigger = "AUTO"
	TriggerAppStart      Trigger = "APP_START"
	TriggerAppForeground Trigger = "APP_FOREGROUND"
	TriggerManual        Trigger = "MANUAL"
)

// Policy holds the timing windows used by ShouldSkipSync.
type Policy struct {
	// IdleSyncInterval is the minimum gap between attempts with no local work.
	IdleSyncInterval time.Duration
	// PendingCoalesce is the minimum gap between attempts with local work.
	PendingCoalesce time.Duration
	// ForegroundCoalesce is the minimum gap before a foreground trigger runs.
	ForegroundCoalesce time.Duration

	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy returns the windows used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		IdleSyncInterval:   2 * time.Minute,
		PendingCoalesce:    1500 * time.Millisecond,
		ForegroundCoalesce: 3 * time.Second,
		BaseBackoff:        5 * time.Second,
		MaxBackoff:         5 * time.Minute,
	}
}

// ShouldSkipSync decides whether a trigger is dropped. The checks run in a
// fixed order: force, active backoff, foreground coalescing, then the
// pending or idle window.
func ShouldSkipSync(force bool, trigger Trigger, hasPendingWork bool, now, lastSyncAttempt time.Time, p Policy, backoffUntil time.Time) bool {
	if force {
		return false
	}
	if now.Before(backoffUntil) {
		return true
	}

	since := now.Sub(lastSyncAttempt)
	if trigger == TriggerAppForeground && since < p.ForegroundCoalesce {
		return true
	}
	if hasPendingWork {
		return since < p.PendingCoalesce
	}
	return since < p.IdleSyncInterval
}

// CalculateBackoffUntil returns now + base*2^(failures-1), capped at
// now + maxBackoff. Failure counts below one are treated as one.
func CalculateBackoffUntil(now time.Time, consecutiveFailures int, base, maxBackoff time.Duration) time.Time {
	if consecutiveFailures < 1 {
		consecutiveFailures = 1
	}
	if base <= 0 || base >= maxBackoff {
		return now.Add(min(max(base, 0), maxBackoff))
	}

	d := base
	for i := 1; i < consecutiveFailures; i++ {
		if d >= maxBackoff/2 {
			d = maxBackoff
			break
		}
		d *= 2
	}
	return now.Add(min(d, maxBackoff))
}
