package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/harlequingg/devfocus/internal/ai"
)

// Subtask is one pomodoro-sized step of an AI breakdown.
type Subtask = ai.Subtask

type Task struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	Priority           string    `json:"priority"`
	EstimatedPomodoros int       `json:"estimatedPomodoros"`
	CompletedPomodoros int       `json:"completedPomodoros"`
	IsCompleted        bool      `json:"isCompleted"`
	AIGenerated        bool      `json:"aiGenerated"`
	AIBreakdown        []Subtask `json:"aiBreakdown"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewTask is the body of a create request. Zero values take the server
// defaults.
type NewTask struct {
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Category           string    `json:"category,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	EstimatedPomodoros int       `json:"estimatedPomodoros,omitempty"`
	AIBreakdown        []Subtask `json:"aiBreakdown,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Category           *string    `json:"category,omitempty"`
	Priority           *string    `json:"priority,omitempty"`
	EstimatedPomodoros *int       `json:"estimatedPomodoros,omitempty"`
	CompletedPomodoros *int       `json:"completedPomodoros,omitempty"`
	AIBreakdown        *[]Subtask `json:"aiBreakdown,omitempty"`
}

type taskResponse struct {
	Task Task `json:"task"`
}

func taskPath(id string) string {
	return "/v1/tasks/" + url.PathEscape(id)
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (*Task, error) {
	var resp taskResponse
	if err := c.post(ctx, "/v1/tasks", t, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// ListTasks returns the caller's tasks, newest first. A non-nil completed
// filters on completion.
func (c *Client) ListTasks(ctx context.Context, completed *bool) ([]Task, error) {
	values := url.Values{}
	if completed != nil {
		values.Set("completed", strconv.FormatBool(*completed))
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.get(ctx, query("/v1/tasks", values), &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var resp taskResponse
	if err := c.get(ctx, taskPath(id), &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	var resp taskResponse
	if err := c.put(ctx, taskPath(id), u, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.delete(ctx, taskPath(id))
}

// IncrementTask records one more completed pomodoro on the task.
func (c *Client) IncrementTask(ctx context.Context, id string) (*Task, error) {
	var resp taskResponse
	if err := c.put(ctx, taskPath(id)+"/increment", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// ApplyBreakdown replaces the task's plan with subtasks. The estimate is
// resized to one pomodoro per subtask.
func (c *Client) ApplyBreakdown(ctx context.Context, id string, subtasks []Subtask) (*Task, error) {
	var resp taskResponse
	body := map[string][]Subtask{"breakdown": subtasks}
	if err := c.put(ctx, taskPath(id)+"/breakdown", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Breakdown asks the server's AI provider to plan a task. Nothing is saved.
func (c *Client) Breakdown(ctx context.Context, title, description string) ([]Subtask, error) {
	var resp struct {
		Breakdown []Subtask `json:"breakdown"`
	}
	err := c.post(ctx, "/v1/ai/breakdown", map[string]string{
		"title":       title,
		"description": description,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Breakdown, nil
}

// Suggestion is a break activity. Fallback is set when the provider failed
// and the canned suggestion was returned.
type Suggestion struct {
	Suggestion string `json:"suggestion"`
	Fallback   bool   `json:"fallback"`
}

// SuggestBreak asks for a break activity. An empty timeOfDay lets the server
// use its own clock.
func (c *Client) SuggestBreak(ctx context.Context, sessionCount int, timeOfDay string) (*Suggestion, error) {
	body := struct {
		SessionCount int    `json:"sessionCount,omitempty"`
		TimeOfDay    string `json:"timeOfDay,omitempty"`
	}{sessionCount, timeOfDay}
	var resp Suggestion
	if err := c.post(ctx, "/v1/ai/suggest-break", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
