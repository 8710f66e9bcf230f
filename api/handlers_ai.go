package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/harlequingg/devfocus/internal/ai"
)

// aiService is the part of the AI adapter the handlers use.
type aiService interface {
	Breakdown(ctx context.Context, title, description string) ([]ai.Subtask, error)
	SuggestBreak(ctx context.Context, sessionCount int, timeOfDay string) (string, error)
}

func (app *application) breakdownHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Title = strings.TrimSpace(input.Title)

	v := newValidator()
	v.checkCond(input.Title != "", "title", "must be provided")
	v.checkCond(len([]rune(input.Title)) <= maxTitleLength, "title", "must be atmost 200 characters")
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	subtasks, err := app.ai.Breakdown(r.Context(), input.Title, strings.TrimSpace(input.Description))
	if err != nil {
		app.errorResponse(w, r, aiError(err))
		return
	}
	writeJSON(w, http.StatusOK, envelope{"breakdown": subtasks})
}

// suggestBreakHandler always answers 200. When the provider cannot help the
// fixed fallback is returned and flagged.
func (app *application) suggestBreakHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionCount int    `json:"sessionCount"`
		TimeOfDay    string `json:"timeOfDay"`
	}
	if err := readOptionalJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if input.SessionCount < 1 {
		input.SessionCount = 1
	}
	if strings.TrimSpace(input.TimeOfDay) == "" {
		input.TimeOfDay = clockTime(app.now(), app.config.location)
	}

	suggestion, err := app.ai.SuggestBreak(r.Context(), input.SessionCount, input.TimeOfDay)
	if err != nil {
		app.logError(r, err)
	}
	if suggestion == "" {
		suggestion = ai.FallbackSuggestion
	}
	writeJSON(w, http.StatusOK, envelope{"suggestion": suggestion, "fallback": err != nil})
}

// clockTime renders t the way break suggestions refer to the time of day.
func clockTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 PM")
}
