package syncer

import (
	"sync"
	"time"
)

// Schedule is a snapshot of the timing state that feeds ShouldSkipSync.
type Schedule struct {
	LastAttempt         time.Time
	BackoffUntil        time.Time
	ConsecutiveFailures int
}

// Coordinator is the single-flight gate for sync passes. The in-flight flag
// and the schedule share one mutex, so racing triggers get exactly one winner.
type Coordinator struct {
	mu                 sync.Mutex
	inFlight           bool
	suppressNextResume bool
	schedule           Schedule
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// RequestAppStartSync suppresses the resume that normally follows a launch
// and tries to acquire the in-flight flag.
func (c *Coordinator) RequestAppStartSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suppressNextResume = true
	return c.acquireLocked()
}

// RequestResumeSync tries to acquire the in-flight flag, unless this is the
// first resume after an app start.
func (c *Coordinator) RequestResumeSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suppressNextResume {
		c.suppressNextResume = false
		return false
	}
	return c.acquireLocked()
}

// TryAcquire is the gate for manual and timer triggers.
func (c *Coordinator) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked()
}

func (c *Coordinator) acquireLocked() bool {
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

// CompleteSync releases the in-flight flag. Call it exactly once per
// successful acquisition.
func (c *Coordinator) CompleteSync() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) Schedule() Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule
}

// MarkAttempt stamps the start of a pass.
func (c *Coordinator) MarkAttempt(now time.Time) {
	c.mu.Lock()
	c.schedule.LastAttempt = now
	c.mu.Unlock()
}

// RecordSuccess clears the failure counter and the backoff.
func (c *Coordinator) RecordSuccess() {
	c.mu.Lock()
	c.schedule.ConsecutiveFailures = 0
	c.schedule.BackoffUntil = time.Time{}
	c.mu.Unlock()
}

// RecordFailure counts a transient failure and returns the new backoff end.
func (c *Coordinator) RecordFailure(now time.Time, p Policy) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule.ConsecutiveFailures++
	c.schedule.BackoffUntil = CalculateBackoffUntil(now, c.schedule.ConsecutiveFailures, p.BaseBackoff, p.MaxBackoff)
	return c.schedule.BackoffUntil
}
