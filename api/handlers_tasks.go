package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harlequingg/devfocus/internal/ai"
)

// ownedTask loads the {id} task and checks it belongs to the caller.
func (app *application) ownedTask(r *http.Request) (*task, error) {
	id, err := idParam(r)
	if err != nil {
		return nil, errTaskNotFound
	}
	t, err := app.storage.getTask(r.Context(), id)
	if err != nil {
		return nil, orNotFound(err, errTaskNotFound)
	}
	if t.UserID != getUserFromRequest(r).ID {
		return nil, errForbidden
	}
	return t, nil
}

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title          string       `json:"title"`
		Description    string       `json:"description"`
		Category       string       `json:"category"`
		Priority       string       `json:"priority"`
		EstimatedUnits *int         `json:"estimatedPomodoros"`
		AIBreakdown    []ai.Subtask `json:"aiBreakdown"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	t := &task{
		UserID:      getUserFromRequest(r).ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    input.Priority,
	}
	if t.Category == "" {
		t.Category = "general"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	estimated := 1
	if input.EstimatedUnits != nil {
		estimated = *input.EstimatedUnits
	}

	t.EstimatedUnits = estimated

	v := newValidator()
	v.checkTask(t)
	var subtasks []ai.Subtask
	if len(input.AIBreakdown) > 0 {
		subtasks = v.checkBreakdown(input.AIBreakdown)
	}
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	t.setProgress(0, estimated)
	if len(subtasks) > 0 {
		t.applyBreakdown(subtasks)
	}

	if err := app.storage.insertTask(r.Context(), t); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/tasks/"+t.ID.String())
	writeJSON(w, http.StatusCreated, envelope{"task": t})
}

func (app *application) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	var completed *bool
	if s := r.URL.Query().Get("completed"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			v := newValidator()
			v.checkCond(false, "completed", "must be true or false")
			app.errorResponse(w, r, v.toError())
			return
		}
		completed = &b
	}

	tasks, err := app.storage.listTasks(r.Context(), getUserFromRequest(r).ID, completed)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"tasks": tasks, "count": len(tasks)})
}

func (app *application) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	t, err := app.ownedTask(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"task": t})
}

func (app *application) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	t, err := app.ownedTask(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var input struct {
		Title          *string       `json:"title"`
		Description    *string       `json:"description"`
		Category       *string       `json:"category"`
		Priority       *string       `json:"priority"`
		EstimatedUnits *int          `json:"estimatedPomodoros"`
		CompletedUnits *int          `json:"completedPomodoros"`
		AIBreakdown    *[]ai.Subtask `json:"aiBreakdown"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if input.Title != nil {
		t.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		t.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		t.Category = strings.TrimSpace(*input.Category)
		if t.Category == "" {
			t.Category = "general"
		}
	}
	if input.Priority != nil {
		t.Priority = *input.Priority
	}
	completed, estimated := t.CompletedUnits, t.EstimatedUnits
	if input.EstimatedUnits != nil {
		estimated = *input.EstimatedUnits
	}
	if input.CompletedUnits != nil {
		completed = *input.CompletedUnits
	}

	v := newValidator()
	v.checkCond(estimated >= 1, "estimatedPomodoros", "must be atleast 1")
	v.checkCond(completed >= 0, "completedPomodoros", "must not be negative")
	var subtasks []ai.Subtask
	if input.AIBreakdown != nil && len(*input.AIBreakdown) > 0 {
		subtasks = v.checkBreakdown(*input.AIBreakdown)
	}
	v.checkTask(t)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	t.setProgress(completed, estimated)
	if input.AIBreakdown != nil {
		if len(*input.AIBreakdown) == 0 {
			t.AIBreakdown = []ai.Subtask{}
			t.AIGenerated = false
		} else {
			t.applyBreakdown(subtasks)
		}
	}

	if err := app.storage.updateTask(r.Context(), t); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"task": t})
}

func (app *application) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	t, err := app.ownedTask(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.storage.deleteTask(r.Context(), t.ID); err != nil {
		app.errorResponse(w, r, orNotFound(err, errTaskNotFound))
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "task successfully deleted"})
}

func (app *application) incrementTaskHandler(w http.ResponseWriter, r *http.Request) {
	t, err := app.ownedTask(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	t.setProgress(t.CompletedUnits+1, t.EstimatedUnits)
	if err := app.storage.updateTask(r.Context(), t); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"task": t})
}

func (app *application) applyBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	t, err := app.ownedTask(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var input struct {
		Breakdown []ai.Subtask `json:"breakdown"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	subtasks, err := ai.Validate(input.Breakdown)
	if err != nil {
		v := newValidator()
		v.checkCond(false, "breakdown", err.Error())
		app.errorResponse(w, r, v.toError())
		return
	}

	t.applyBreakdown(subtasks)
	if err := app.storage.updateTask(r.Context(), t); err != nil {
		app.errorResponse(w, r, orNotFound(err, errTaskNotFound))
		return
	}
	writeJSON(w, http.StatusOK, envelope{"task": t})
}
