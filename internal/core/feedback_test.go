package core

import "testing"

func TestFeedbackPolicy_Magnitude(t *testing.T) {
	p := DefaultFeedbackPolicy()
	tests := []struct {
		reported, next float64
		want           FeedbackEvent
	}{
		{0.5, 0.5, ""},
		{0.5, 0.505, ""},
		{0.5, 0.52, FeedbackLight},
		{0.5, 0.45, FeedbackLight},
		{0.5, 0.6, FeedbackLight},
		{0.5, 0.65, FeedbackMedium},
		{0.9, 0.1, FeedbackMedium},
	}
	for _, tt := range tests {
		if got := p.Magnitude(tt.reported, tt.next); got != tt.want {
			t.Errorf("Magnitude(%v, %v) = %q, want %q", tt.reported, tt.next, got, tt.want)
		}
	}
}

func TestFeedbackPolicy_Crossings(t *testing.T) {
	p := DefaultFeedbackPolicy()
	tests := []struct {
		name       string
		prev, next float64
		want       []FeedbackEvent
	}{
		{"inside", 0.3, 0.4, nil},
		{"reach zero", 0.02, 0, []FeedbackEvent{FeedbackBoundary}},
		{"hold at zero", 0, 0, nil},
		{"rise to success", 0.97, 0.985, []FeedbackEvent{FeedbackSuccess}},
		{"reach one", 0.99, 1, []FeedbackEvent{FeedbackBoundary}},
		{"jump to one", 0.5, 1, []FeedbackEvent{FeedbackBoundary, FeedbackSuccess}},
		{"hold at one", 1, 1, nil},
		{"falling through threshold", 0.99, 0.97, nil},
		{"leave boundary", 0, 0.1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Crossings(tt.prev, tt.next)
			if len(got) != len(tt.want) {
				t.Fatalf("Crossings(%v, %v) = %v, want %v", tt.prev, tt.next, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFeedbackTracker_AccumulatesSmallMoves(t *testing.T) {
	tr := NewFeedbackTracker(DefaultFeedbackPolicy(), 0.5)

	// Sub-threshold steps accumulate until the third crosses the light delta.
	var fired []int
	for i := 1; i <= 4; i++ {
		if events := tr.Observe(0.5 + float64(i)*0.004); len(events) > 0 {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("expected a single event at step 3, got %v", fired)
	}
}

func TestFeedbackTracker_Reset(t *testing.T) {
	tr := NewFeedbackTracker(DefaultFeedbackPolicy(), 0.1)
	tr.Reset(0.9)
	if events := tr.Observe(0.905); len(events) != 0 {
		t.Errorf("expected no events after reset, got %v", events)
	}
}
