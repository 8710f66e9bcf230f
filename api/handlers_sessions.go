package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harlequingg/devfocus/internal/stats"
)

const defaultSessionMinutes = 25

func (app *application) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TaskID   string `json:"taskId"`
		Duration *int   `json:"duration"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	duration := defaultSessionMinutes
	if input.Duration != nil {
		duration = *input.Duration
	}
	v := newValidator()
	v.checkCond(strings.TrimSpace(input.TaskID) != "", "taskId", "must be provided")
	v.checkDuration(duration)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	taskID, err := uuid.Parse(strings.TrimSpace(input.TaskID))
	if err != nil {
		app.errorResponse(w, r, errTaskNotFound)
		return
	}
	t, err := app.storage.getTask(r.Context(), taskID)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errTaskNotFound))
		return
	}
	u := getUserFromRequest(r)
	if t.UserID != u.ID {
		app.errorResponse(w, r, errForbidden)
		return
	}

	s := &session{
		UserID:    u.ID,
		TaskID:    uuid.NullUUID{UUID: t.ID, Valid: true},
		Duration:  duration,
		StartedAt: app.now(),
	}
	if err := app.storage.insertSession(r.Context(), s); err != nil {
		app.errorResponse(w, r, orNotFound(err, errTaskNotFound))
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"session": s})
}

func (app *application) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.storage.listSessions(r.Context(), getUserFromRequest(r).ID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"sessions": sessions, "count": len(sessions)})
}

// completeSessionHandler closes a focus session. Counters and task progress
// move in the same unit of work, and repeating the call is harmless.
func (app *application) completeSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		app.errorResponse(w, r, errSessionNotFound)
		return
	}
	s, err := app.storage.getSession(r.Context(), id)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errSessionNotFound))
		return
	}
	if s.UserID != getUserFromRequest(r).ID {
		app.errorResponse(w, r, errForbidden)
		return
	}

	var input struct {
		Notes string `json:"notes"`
	}
	if err := readOptionalJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Notes = strings.TrimSpace(input.Notes)
	v := newValidator()
	v.checkNotes(input.Notes)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	now := app.now()
	advance := func(c stats.Counters) stats.Counters {
		return stats.Advance(c, now, app.config.location)
	}
	res, err := app.storage.completeSession(r.Context(), id, input.Notes, now, advance)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errSessionNotFound))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (app *application) sessionStatsHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	sessions, err := app.storage.completedSessions(r.Context(), u.ID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	summary := stats.Summarize(u.Counters, sessions, app.now(), app.config.location)
	writeJSON(w, http.StatusOK, envelope{"stats": summary})
}
