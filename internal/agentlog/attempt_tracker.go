package agentlog

import "time"

// Attempt outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeProvider   = "provider"
)

// maxOutputPreview bounds the stored output of a failed attempt.
const maxOutputPreview = 500

// Attempt is one try of the validated retry loop.
type Attempt struct {
	Number     int    `json:"number"`
	Outcome    string `json:"outcome"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int    `json:"duration_ms"`
}

// Attempts holds every try of one agent call.
type Attempts struct {
	Attempts        []Attempt `json:"attempts"`
	TotalDurationMs int       `json:"total_duration_ms"`
}

// AttemptTracker captures the attempts of a retry loop.
//
// Usage:
//
//	tracker := agentlog.NewAttemptTracker()
//	for attempt := 1; attempt <= max; attempt++ {
//	    tracker.Start()
//	    text, err := provider.Complete(ctx, req)
//	    tracker.End(outcome, text, err)
//	}
//	entry.Attempts = tracker.Build()
type AttemptTracker struct {
	attempts     []Attempt
	startTime    time.Time
	attemptStart time.Time
}

// NewAttemptTracker creates a new AttemptTracker.
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{startTime: time.Now()}
}

// Start marks the beginning of an attempt.
func (t *AttemptTracker) Start() {
	t.attemptStart = time.Now()
}

// End records a finished attempt. Output is truncated for failed attempts.
func (t *AttemptTracker) End(outcome, output string, err error) {
	a := Attempt{
		Number:     len(t.attempts) + 1,
		Outcome:    outcome,
		Output:     output,
		DurationMs: int(time.Since(t.attemptStart).Milliseconds()),
	}
	if outcome != OutcomeSuccess && len(a.Output) > maxOutputPreview {
		a.Output = a.Output[:maxOutputPreview] + "... (truncated)"
	}
	if err != nil {
		a.Error = err.Error()
	}
	t.attempts = append(t.attempts, a)
}

// Build returns the recorded attempts, or nil if there were none.
func (t *AttemptTracker) Build() *Attempts {
	if len(t.attempts) == 0 {
		return nil
	}
	return &Attempts{
		Attempts:        t.attempts,
		TotalDurationMs: int(time.Since(t.startTime).Milliseconds()),
	}
}

// Count returns the number of recorded attempts.
func (t *AttemptTracker) Count() int {
	return len(t.attempts)
}

// Last returns the last recorded attempt.
func (t *AttemptTracker) Last() (Attempt, bool) {
	if len(t.attempts) == 0 {
		return Attempt{}, false
	}
	return t.attempts[len(t.attempts)-1], true
}

// TotalDuration returns the time since the tracker was created.
func (t *AttemptTracker) TotalDuration() time.Duration {
	return time.Since(t.startTime)
}
