// Package timer implements the client-held Pomodoro countdown: a work/break
// phase machine that opens and completes focus sessions on the server and
// survives restarts through persisted snapshots.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type Phase string

const (
	Work  Phase = "work"
	Break Phase = "break"
)

const (
	DefaultWork  = 25 * time.Minute
	DefaultBreak = 5 * time.Minute

	// RestoreWindow is how old a snapshot may be and still be restored.
	RestoreWindow = time.Hour
)

var (
	ErrNoTask          = errors.New("select a task before starting a focus session")
	ErrNotOnBreak      = errors.New("only a break can be skipped")
	ErrSessionInFlight = errors.New("a focus session is already open for another task")
)

// Task identifies the task a focus session is tracked against.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Sessions is the server side of the session lifecycle.
type Sessions interface {
	Open(ctx context.Context, taskID string, minutes int) (sessionID string, err error)
	Complete(ctx context.Context, sessionID, notes string) error
}

type EventKind int

const (
	WorkComplete EventKind = iota + 1
	BreakComplete
)

type Event struct {
	Kind  EventKind
	Title string
	Body  string
}

type Config struct {
	Work  time.Duration
	Break time.Duration

	// Sessions may be nil for a purely local timer.
	Sessions Sessions
	Store    Store

	// Notify receives user-facing notifications. Optional.
	Notify func(Event)
	// Notes is asked for session notes when a work interval completes. It
	// must not call back into the Timer. Optional.
	Notes func(ctx context.Context) string

	Now func() time.Time
}

// State is a read-only view of the timer.
type State struct {
	Phase        Phase
	Active       bool
	Remaining    int
	Task         *Task
	SessionID    string
	SessionCount int
}

type Timer struct {
	mu  sync.Mutex
	cfg Config

	phase     Phase
	active    bool
	remaining int
	task      *Task
	sessionID string
	count     int
}

func New(cfg Config) *Timer {
	if cfg.Work <= 0 {
		cfg.Work = DefaultWork
	}
	if cfg.Break <= 0 {
		cfg.Break = DefaultBreak
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Timer{
		cfg:       cfg,
		phase:     Work,
		remaining: seconds(cfg.Work),
	}
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	var task *Task
	if t.task != nil {
		cp := *t.task
		task = &cp
	}
	return State{
		Phase:        t.phase,
		Active:       t.active,
		Remaining:    t.remaining,
		Task:         task,
		SessionID:    t.sessionID,
		SessionCount: t.count,
	}
}

// Select sets the task for the next focus session.
func (t *Timer) Select(task Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != "" && t.task != nil && t.task.ID != task.ID {
		return ErrSessionInFlight
	}
	t.task = &task
	return t.persistLocked()
}

// Start runs the countdown. In the work phase it opens a focus session for
// the selected task unless one is already open.
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return nil
	}
	if t.phase == Work {
		if t.task == nil {
			return ErrNoTask
		}
		if t.sessionID == "" && t.cfg.Sessions != nil {
			minutes := int(t.cfg.Work / time.Minute)
			if minutes < 1 {
				minutes = 1
			}
			id, err := t.cfg.Sessions.Open(ctx, t.task.ID, minutes)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}
			t.sessionID = id
		}
	}
	t.active = true
	return t.persistLocked()
}

func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	return t.persistLocked()
}

// Reset stops the countdown and rewinds the current phase. An open session
// stays open so the next start continues it.
func (t *Timer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.remaining = t.fullLocked()
	return t.cfg.Store.Clear()
}

// Skip ends a break early.
func (t *Timer) Skip() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != Break {
		return ErrNotOnBreak
	}
	t.phase = Work
	t.remaining = seconds(t.cfg.Work)
	t.active = false
	return t.cfg.Store.Clear()
}

// Tick advances the countdown by one second. When the countdown is at zero
// while running it completes the current phase instead.
func (t *Timer) Tick(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickLocked(ctx)
}

// Advance applies n elapsed seconds, stopping early if a phase completes.
func (t *Timer) Advance(ctx context.Context, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < n && t.active; i++ {
		if err := t.tickLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *Timer) tickLocked(ctx context.Context) error {
	if !t.active {
		return nil
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		return t.persistLocked()
	}
	return t.completeLocked(ctx)
}

func (t *Timer) completeLocked(ctx context.Context) error {
	if t.phase == Break {
		t.active = false
		t.phase = Work
		t.remaining = seconds(t.cfg.Work)
		t.notify(Event{Kind: BreakComplete, Title: "Break over", Body: "Ready to focus again?"})
		return t.cfg.Store.Clear()
	}

	if t.sessionID != "" && t.cfg.Sessions != nil {
		var notes string
		if t.cfg.Notes != nil {
			notes = t.cfg.Notes(ctx)
		}
		// On failure the timer stays at zero and running, so the next tick
		// retries the completion.
		if err := t.cfg.Sessions.Complete(ctx, t.sessionID, notes); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
	}

	t.active = false
	t.phase = Break
	t.remaining = seconds(t.cfg.Break)
	t.sessionID = ""
	t.count++
	t.notify(Event{
		Kind:  WorkComplete,
		Title: "Pomodoro complete",
		Body:  fmt.Sprintf("Great work! Time for a %d-minute break.", int(t.cfg.Break/time.Minute)),
	})
	return t.saveLocked()
}

// Run ticks the timer once per second until ctx is done. Elapsed time is
// measured on the wall clock, so a delayed tick catches up instead of
// drifting.
func (t *Timer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := t.cfg.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := t.cfg.Now()
		if !t.State().Active {
			last = now
			continue
		}
		elapsed := int(now.Sub(last) / time.Second)
		if elapsed <= 0 {
			continue
		}
		last = last.Add(time.Duration(elapsed) * time.Second)
		if err := t.Advance(ctx, elapsed); err != nil {
			return err
		}
	}
}

// Restore loads the persisted snapshot if it is younger than RestoreWindow.
// A running snapshot loses the time elapsed since it was saved; a paused one
// does not. Restore never completes a phase by itself: a countdown that ran
// out while the process was down waits at zero for the next Start and Tick.
func (t *Timer) Restore() (bool, error) {
	snap, err := t.cfg.Store.Load()
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	now := t.cfg.Now()
	age := now.Sub(snap.SavedAt)
	if age >= RestoreWindow {
		return false, t.cfg.Store.Clear()
	}
	if age < 0 {
		age = 0
	}

	remaining := snap.TimeLeft
	if snap.IsActive {
		remaining -= int(age / time.Second)
	}
	if remaining < 0 {
		remaining = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = Work
	if snap.IsBreak {
		t.phase = Break
	}
	t.remaining = remaining
	t.active = snap.IsActive && remaining > 0
	t.task = snap.CurrentTask
	t.sessionID = snap.CurrentSessionID
	t.count = snap.SessionCount
	return true, nil
}

// persistLocked saves a snapshot whenever there is something a restart would
// lose: a running countdown, an open session, or a break in progress.
func (t *Timer) persistLocked() error {
	if !t.active && t.sessionID == "" && t.phase != Break {
		return nil
	}
	return t.saveLocked()
}

func (t *Timer) saveLocked() error {
	return t.cfg.Store.Save(Snapshot{
		TimeLeft:         t.remaining,
		IsActive:         t.active,
		IsBreak:          t.phase == Break,
		CurrentTask:      t.task,
		SessionCount:     t.count,
		CurrentSessionID: t.sessionID,
		SavedAt:          t.cfg.Now(),
	})
}

func (t *Timer) fullLocked() int {
	if t.phase == Break {
		return seconds(t.cfg.Break)
	}
	return seconds(t.cfg.Work)
}

func (t *Timer) notify(e Event) {
	if t.cfg.Notify != nil {
		t.cfg.Notify(e)
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
