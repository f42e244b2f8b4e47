package core

import "math"

// FeedbackEvent is a UI/haptic cue decided from a value change. Dispatching
// it to a device is the caller's job.
type FeedbackEvent string

const (
	FeedbackLight    FeedbackEvent = "light"
	FeedbackMedium   FeedbackEvent = "medium"
	FeedbackBoundary FeedbackEvent = "boundary"
	FeedbackSuccess  FeedbackEvent = "success"
)

// FeedbackPolicy holds the thresholds of the feedback decision functions.
// Values passed to it are normalized to [0, 1].
type FeedbackPolicy struct {
	LightDelta       float64
	MediumDelta      float64
	SuccessThreshold float64
}

// DefaultFeedbackPolicy returns the standard thresholds.
func DefaultFeedbackPolicy() FeedbackPolicy {
	return FeedbackPolicy{
		LightDelta:       0.01,
		MediumDelta:      0.1,
		SuccessThreshold: 0.98,
	}
}

// Magnitude decides the movement event between the last reported value and
// the new one. It returns "" for sub-perceptible motion.
func (p FeedbackPolicy) Magnitude(reported, next float64) FeedbackEvent {
	d := math.Abs(next - reported)
	switch {
	case d > p.MediumDelta:
		return FeedbackMedium
	case d > p.LightDelta:
		return FeedbackLight
	default:
		return ""
	}
}

// Crossings returns the boundary and success events fired by moving from
// prev to next. Each fires only on the step that crosses into it, so holding
// a value at a boundary emits nothing further.
func (p FeedbackPolicy) Crossings(prev, next float64) []FeedbackEvent {
	var events []FeedbackEvent
	prevInside := prev > 0 && prev < 1
	if prevInside && (next <= 0 || next >= 1) {
		events = append(events, FeedbackBoundary)
	}
	if next > prev && prev < p.SuccessThreshold && next >= p.SuccessThreshold {
		events = append(events, FeedbackSuccess)
	}
	return events
}

// FeedbackTracker applies a FeedbackPolicy to a stream of values, keeping
// the last reported value so small motions accumulate until they matter.
type FeedbackTracker struct {
	policy   FeedbackPolicy
	reported float64
	last     float64
}

// NewFeedbackTracker starts tracking at the given normalized value.
func NewFeedbackTracker(policy FeedbackPolicy, initial float64) *FeedbackTracker {
	return &FeedbackTracker{policy: policy, reported: initial, last: initial}
}

// Observe records the next normalized value and returns the events to fire.
func (t *FeedbackTracker) Observe(next float64) []FeedbackEvent {
	var events []FeedbackEvent
	if e := t.policy.Magnitude(t.reported, next); e != "" {
		events = append(events, e)
		t.reported = next
	}
	events = append(events, t.policy.Crossings(t.last, next)...)
	t.last = next
	return events
}

// Reset moves the tracker to v without emitting events.
func (t *FeedbackTracker) Reset(v float64) {
	t.reported = v
	t.last = v
}
