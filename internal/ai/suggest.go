package ai

import (
	"context"
	"errors"
	"fmt"
)

const suggestPrompt = `You are a wellness coach helping a developer take an effective break after completing %d Pomodoro session(s).

Current time: %s

Suggest ONE specific, actionable 5-minute break activity that will help them:
- Rest their eyes
- Move their body
- Reset their mind
- Prepare for the next session

Keep it under 40 words. Be specific and encouraging. Return ONLY the suggestion text (no formatting, no prefix like "Here's a suggestion:").`

// SuggestBreak returns a short break activity. The returned text is always
// usable: on failure it is FallbackSuggestion and err says why.
func (c *Client) SuggestBreak(ctx context.Context, sessionCount int, timeOfDay string) (string, error) {
	if sessionCount < 1 {
		sessionCount = 1
	}
	text, err := c.complete(ctx, fmt.Sprintf(suggestPrompt, sessionCount, timeOfDay), 0.8, 150)
	if err != nil {
		return FallbackSuggestion, err
	}
	if text == "" {
		return FallbackSuggestion, &Error{Kind: KindParse, Err: errors.New("empty suggestion")}
	}
	return text, nil
}
