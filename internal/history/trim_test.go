package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/runixer/heirloom/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(role llm.Role, tokens int, tag string) llm.Message {
	// tag keeps messages distinguishable; padding sets the estimated size.
	content := tag + strings.Repeat("x", tokens*charsPerToken-len(tag))
	return llm.Message{Role: role, Content: content}
}

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(llm.Message{Content: "abc"}))
	assert.Equal(t, 1, EstimateTokens(llm.Message{Content: "abcd"}))
	assert.Equal(t, 3, Estimate([]llm.Message{{Content: "abcdefgh"}, {Content: "abcde"}}))
}

func TestTrim_KeepsNewestWithinBudget(t *testing.T) {
	h := []llm.Message{
		msg(llm.RoleUser, 10, "u1"),
		msg(llm.RoleAssistant, 10, "a1"),
		msg(llm.RoleUser, 10, "u2"),
		msg(llm.RoleAssistant, 10, "a2"),
	}

	got := Trim(h, 25, "")
	require.Len(t, got, 2)
	assert.Equal(t, h[2], got[0])
	assert.Equal(t, h[3], got[1])
}

func TestTrim_EverythingFits(t *testing.T) {
	h := []llm.Message{
		msg(llm.RoleUser, 5, "u1"),
		msg(llm.RoleAssistant, 5, "a1"),
	}
	assert.Equal(t, h, Trim(h, 100, "next question"))
}

func TestTrim_StopsAtFirstOverflow(t *testing.T) {
	h := []llm.Message{
		msg(llm.RoleUser, 1, "u1"),
		msg(llm.RoleAssistant, 50, "a1"),
		msg(llm.RoleUser, 5, "u2"),
	}
	got := Trim(h, 10, "")
	require.Len(t, got, 1)
	assert.Equal(t, h[2], got[0], "older small message must not be kept past a gap")
}

func TestTrim_OversizedNewestIsKept(t *testing.T) {
	h := []llm.Message{
		msg(llm.RoleUser, 5, "u1"),
		msg(llm.RoleAssistant, 100, "a1"),
	}
	got := Trim(h, 10, "")
	require.Len(t, got, 1)
	assert.Equal(t, h[1], got[0])
}

func TestTrim_DropsTrailingDuplicateOfPending(t *testing.T) {
	h := []llm.Message{
		{Role: llm.RoleUser, Content: "Who made you?"},
		{Role: llm.RoleAssistant, Content: "A master in Amsterdam."},
		{Role: llm.RoleUser, Content: "Where do you live?"},
	}

	got := Trim(h, 1000, "  Where do you live? ")
	require.Len(t, got, 2)
	assert.Equal(t, h[:2], got)
}

func TestTrim_DoesNotDropAssistantWithSameText(t *testing.T) {
	h := []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}
	got := Trim(h, 1000, "hello")
	assert.Equal(t, h, got)
}

func TestTrim_Empty(t *testing.T) {
	assert.Empty(t, Trim(nil, 100, "x"))
	assert.Empty(t, Trim([]llm.Message{{Role: llm.RoleUser, Content: "x"}}, 100, "x"))
}

func TestTrim_DoesNotMutateInput(t *testing.T) {
	h := []llm.Message{
		msg(llm.RoleUser, 10, "u1"),
		msg(llm.RoleAssistant, 10, "a1"),
	}
	snapshot := append([]llm.Message(nil), h...)
	got := Trim(h, 15, "")
	got[0].Content = "changed"
	assert.Equal(t, snapshot, h)
}

func TestTrim_BudgetAndOrderProperty(t *testing.T) {
	var h []llm.Message
	for i := 0; i < 40; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		h = append(h, msg(role, 1+(i*7)%13, fmt.Sprintf("m%02d", i)))
	}

	for budget := 0; budget <= 200; budget += 7 {
		got := Trim(h, budget, "")
		require.NotEmpty(t, got)
		if len(got) > 1 {
			assert.LessOrEqual(t, Estimate(got), budget, "budget %d", budget)
		}
		// kept messages are a contiguous suffix in original order
		offset := len(h) - len(got)
		assert.Equal(t, h[offset:], got, "budget %d", budget)
	}
}
