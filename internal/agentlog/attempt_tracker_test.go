package agentlog

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttemptTracker(t *testing.T) {
	tracker := NewAttemptTracker()

	assert.NotNil(t, tracker)
	assert.Equal(t, 0, tracker.Count())
	assert.Nil(t, tracker.Build())
	_, ok := tracker.Last()
	assert.False(t, ok)
}

func TestAttemptTracker_RecordsAttempts(t *testing.T) {
	tracker := NewAttemptTracker()

	tracker.Start()
	time.Sleep(10 * time.Millisecond)
	tracker.End(OutcomeProvider, "", errors.New("timeout"))

	tracker.Start()
	tracker.End(OutcomeValidation, "Привет", errors.New("disallowed character"))

	tracker.Start()
	tracker.End(OutcomeSuccess, "Hello there.", nil)

	require.Equal(t, 3, tracker.Count())
	result := tracker.Build()
	require.NotNil(t, result)
	require.Len(t, result.Attempts, 3)

	assert.Equal(t, 1, result.Attempts[0].Number)
	assert.Equal(t, OutcomeProvider, result.Attempts[0].Outcome)
	assert.Equal(t, "timeout", result.Attempts[0].Error)
	assert.GreaterOrEqual(t, result.Attempts[0].DurationMs, 10)

	assert.Equal(t, OutcomeValidation, result.Attempts[1].Outcome)
	assert.Equal(t, "Привет", result.Attempts[1].Output)

	last, ok := tracker.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Number)
	assert.Equal(t, OutcomeSuccess, last.Outcome)
	assert.Empty(t, last.Error)
	assert.GreaterOrEqual(t, result.TotalDurationMs, 10)
}

func TestAttemptTracker_TruncatesFailedOutput(t *testing.T) {
	tracker := NewAttemptTracker()
	long := strings.Repeat("x", maxOutputPreview+100)

	tracker.Start()
	tracker.End(OutcomeValidation, long, nil)
	tracker.Start()
	tracker.End(OutcomeSuccess, long, nil)

	result := tracker.Build()
	assert.True(t, strings.HasSuffix(result.Attempts[0].Output, "... (truncated)"))
	assert.Equal(t, long, result.Attempts[1].Output)
}
