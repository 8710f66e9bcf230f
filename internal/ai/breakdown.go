package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Subtask is one focus-session-sized piece of a task.
type Subtask struct {
	Index      int      `json:"index"`
	Subtask    string   `json:"subtask"`
	Steps      []string `json:"steps"`
	Difficulty int      `json:"difficulty"`
	Completed  bool     `json:"completed"`
}

// rawSubtask accepts both the field name we prompt for and the one we serve.
type rawSubtask struct {
	PomodoroNumber int      `json:"pomodoroNumber"`
	Index          int      `json:"index"`
	Subtask        string   `json:"subtask"`
	Steps          []string `json:"steps"`
	Difficulty     int      `json:"difficulty"`
}

const breakdownPrompt = `You are a productivity expert helping developers break down coding tasks into focused 25-minute Pomodoro sessions.

Task Title: %s
Task Description: %s

Break this task down into 4-6 specific Pomodoro sessions. Each session should:
1. Be completable in 25 minutes
2. Have a clear, actionable goal
3. Include 2-4 specific steps to accomplish
4. Have a difficulty rating (1=Easy, 2=Medium, 3=Hard)

Return ONLY a valid JSON array (no markdown, no backticks, no explanation) with this exact structure:
[
  {
    "pomodoroNumber": 1,
    "subtask": "Brief title of what to accomplish",
    "steps": ["Step 1", "Step 2", "Step 3"],
    "difficulty": 2
  }
]

Keep subtasks focused and realistic for 25-minute sessions. Be specific and actionable. Return ONLY the JSON array, nothing else.`

// Breakdown asks the provider to split a task into focus sessions. It either
// returns a fully validated breakdown or an *Error; never partial data.
func (c *Client) Breakdown(ctx context.Context, title, description string) ([]Subtask, error) {
	if strings.TrimSpace(description) == "" {
		description = "No additional description provided"
	}

	text, err := c.complete(ctx, fmt.Sprintf(breakdownPrompt, title, description), 0.7, 2000)
	if err != nil {
		return nil, err
	}
	return ParseBreakdown(text)
}

// ParseBreakdown strips markdown fences and surrounding prose from a model
// reply and decodes the JSON array inside it.
func ParseBreakdown(text string) ([]Subtask, error) {
	clean := stripFences(text)

	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start < 0 || end < start {
		return nil, &Error{Kind: KindParse, Err: errors.New("no JSON array in response")}
	}

	var raw []rawSubtask
	if err := json.Unmarshal([]byte(clean[start:end+1]), &raw); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}

	subtasks, err := Validate(normalize(raw))
	if err != nil {
		return nil, &Error{Kind: KindInvalid, Err: err}
	}
	return subtasks, nil
}

func stripFences(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```JSON", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}

func normalize(raw []rawSubtask) []Subtask {
	out := make([]Subtask, 0, len(raw))
	for _, r := range raw {
		steps := make([]string, 0, len(r.Steps))
		for _, s := range r.Steps {
			if s = strings.TrimSpace(s); s != "" {
				steps = append(steps, s)
			}
		}
		out = append(out, Subtask{
			Subtask:    strings.TrimSpace(r.Subtask),
			Steps:      steps,
			Difficulty: r.Difficulty,
		})
	}
	return out
}

// Validate checks a breakdown structurally and renumbers it 1..n in order.
func Validate(subtasks []Subtask) ([]Subtask, error) {
	if len(subtasks) == 0 {
		return nil, errors.New("breakdown is empty")
	}
	out := make([]Subtask, len(subtasks))
	for i, s := range subtasks {
		if strings.TrimSpace(s.Subtask) == "" {
			return nil, fmt.Errorf("item %d: subtask must be provided", i+1)
		}
		if len(s.Steps) == 0 {
			return nil, fmt.Errorf("item %d: at least one step is required", i+1)
		}
		if s.Difficulty < 1 || s.Difficulty > 3 {
			return nil, fmt.Errorf("item %d: difficulty must be 1, 2 or 3, got %d", i+1, s.Difficulty)
		}
		s.Index = i + 1
		out[i] = s
	}
	return out, nil
}
