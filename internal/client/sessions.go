package client

import (
	"context"
	"net/url"
	"time"

	"github.com/harlequingg/devfocus/internal/stats"
)

type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	TaskID      string     `json:"taskId"`
	Duration    int        `json:"duration"`
	Completed   bool       `json:"completed"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"createdAt"`

	// Set by ListSessions.
	TaskTitle    string `json:"taskTitle,omitempty"`
	TaskCategory string `json:"taskCategory,omitempty"`
}

// Completion is the result of completing a session: the stored session, the
// task it advanced and the caller's updated counters.
type Completion struct {
	Session          Session        `json:"session"`
	Task             *Task          `json:"task"`
	User             stats.Counters `json:"user"`
	AlreadyCompleted bool           `json:"alreadyCompleted"`
}

// OpenSession starts a focus session of minutes on task taskID. Zero
// minutes takes the server default.
func (c *Client) OpenSession(ctx context.Context, taskID string, minutes int) (*Session, error) {
	body := struct {
		TaskID   string `json:"taskId"`
		Duration int    `json:"duration,omitempty"`
	}{taskID, minutes}
	var resp struct {
		Session Session `json:"session"`
	}
	if err := c.post(ctx, "/v1/sessions", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// CompleteSession closes a session. Completing it again is harmless and
// reports AlreadyCompleted.
func (c *Client) CompleteSession(ctx context.Context, id, notes string) (*Completion, error) {
	var resp Completion
	body := map[string]string{"notes": notes}
	if err := c.put(ctx, "/v1/sessions/"+url.PathEscape(id)+"/complete", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var resp struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.get(ctx, "/v1/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) Stats(ctx context.Context) (*stats.Summary, error) {
	var resp struct {
		Stats stats.Summary `json:"stats"`
	}
	if err := c.get(ctx, "/v1/sessions/stats", &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// Sessions adapts a Client to the timer's session lifecycle.
type Sessions struct {
	Client *Client
	// OnComplete, if set, receives every successful completion.
	OnComplete func(*Completion)
}

func (s *Sessions) Open(ctx context.Context, taskID string, minutes int) (string, error) {
	session, err := s.Client.OpenSession(ctx, taskID, minutes)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

func (s *Sessions) Complete(ctx context.Context, sessionID, notes string) error {
	completion, err := s.Client.CompleteSession(ctx, sessionID, notes)
	if err != nil {
		return err
	}
	if s.OnComplete != nil {
		s.OnComplete(completion)
	}
	return nil
}
