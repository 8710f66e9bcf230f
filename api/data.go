package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/harlequingg/devfocus/internal/ai"
	"github.com/harlequingg/devfocus/internal/stats"
)

const (
	otpPurposeVerify = "verify"
	otpPurposeReset  = "reset"
)

type user struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	IsVerified   bool      `json:"isVerified"`
	stats.Counters

	OTPHash      []byte     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	OTPPurpose   string     `json:"-"`

	Version int `json:"-"`
}

type task struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"userId"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	Priority       string       `json:"priority"`
	EstimatedUnits int          `json:"estimatedPomodoros"`
	CompletedUnits int          `json:"completedPomodoros"`
	IsCompleted    bool         `json:"isCompleted"`
	AIGenerated    bool         `json:"aiGenerated"`
	AIBreakdown    []ai.Subtask `json:"aiBreakdown"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Version        int          `json:"-"`
}

// setProgress is the only way task progress changes. Every mutation path
// goes through it so IsCompleted always agrees with the unit counts.
func (t *task) setProgress(completed, estimated int) {
	if estimated < 1 {
		estimated = 1
	}
	if completed < 0 {
		completed = 0
	}
	t.CompletedUnits = completed
	t.EstimatedUnits = estimated
	t.IsCompleted = completed >= estimated
}

// applyBreakdown replaces the task's plan with subtasks and resizes the
// estimate to match.
func (t *task) applyBreakdown(subtasks []ai.Subtask) {
	t.AIBreakdown = subtasks
	t.AIGenerated = true
	t.setProgress(t.CompletedUnits, len(subtasks))
}

type session struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"userId"`
	TaskID      uuid.NullUUID `json:"taskId"`
	Duration    int           `json:"duration"`
	Completed   bool          `json:"completed"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt"`
	Notes       string        `json:"notes"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// sessionView is a session joined with the task it was tracked against.
type sessionView struct {
	*session
	TaskTitle    string `json:"taskTitle,omitempty"`
	TaskCategory string `json:"taskCategory,omitempty"`
}

// completion is the outcome of closing a focus session.
type completion struct {
	Session          *session       `json:"session"`
	Task             *task          `json:"task"`
	User             stats.Counters `json:"user"`
	AlreadyCompleted bool           `json:"alreadyCompleted"`
}
