// Package history bounds a conversation to a token budget before it is sent
// to the generation provider.
package history

import (
	"strings"

	"github.com/runixer/heirloom/internal/llm"
)

// charsPerToken approximates the provider tokenizer.
const charsPerToken = 4

// EstimateTokens returns the rough token cost of one message.
func EstimateTokens(m llm.Message) int {
	return len(m.Content) / charsPerToken
}

// Estimate returns the rough token cost of a message list.
func Estimate(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m)
	}
	return total
}

// Trim returns the newest suffix of messages whose estimated size fits in
// budget, in chronological order. If the newest message is a user message
// equal to pending (the input about to be sent), it is dropped first so the
// input is not submitted twice. The newest remaining message is always kept,
// even when it alone exceeds the budget. The input slice is not modified.
func Trim(messages []llm.Message, budget int, pending string) []llm.Message {
	end := len(messages)
	if end > 0 {
		last := messages[end-1]
		if last.Role == llm.RoleUser && pending != "" &&
			strings.TrimSpace(last.Content) == strings.TrimSpace(pending) {
			end--
		}
	}
	if end == 0 {
		return nil
	}

	start := end - 1
	used := EstimateTokens(messages[start])
	for i := start - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	out := make([]llm.Message, end-start)
	copy(out, messages[start:end])
	return out
}
