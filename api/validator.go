package main

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/harlequingg/devfocus/internal/ai"
)

var (
	emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	otpRegexp   = regexp.MustCompile(`^[0-9]{6}$`)
)

var priorities = []string{"low", "medium", "high"}

const (
	maxTitleLength = 200
	maxNotesLength = 1000
	maxNameLength  = 50
	maxDuration    = 180
)

type validator struct {
	errors map[string]string
}

func newValidator() *validator {
	return &validator{
		errors: make(map[string]string),
	}
}

func (v *validator) toError() error {
	if !v.hasErrors() {
		return nil
	}
	return &validationError{fields: v.errors}
}

func (v *validator) hasErrors() bool {
	return len(v.errors) != 0
}

func (v *validator) checkCond(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
	}
}

func (v *validator) checkEmail(email string) {
	v.checkCond(email != "", "email", "must be provided")
	v.checkCond(emailRegexp.MatchString(email), "email", "must be a valid email address")
}

func (v *validator) checkPassword(key, password string) {
	v.checkCond(password != "", key, "must be provided")
	v.checkCond(len(password) >= 8, key, "must be atleast 8 characters long")
	v.checkCond(len(password) <= 72, key, "must be atmost 72 characters long")
}

func (v *validator) checkName(name string) {
	name = strings.TrimSpace(name)
	v.checkCond(name != "", "name", "must be provided")
	v.checkCond(utf8.RuneCountInString(name) <= maxNameLength, "name", "must be atmost 50 characters")
}

func (v *validator) checkOTP(otp string) {
	v.checkCond(otp != "", "otp", "must be provided")
	v.checkCond(otpRegexp.MatchString(otp), "otp", "must be a 6 digit code")
}

func (v *validator) checkTask(t *task) {
	v.checkCond(strings.TrimSpace(t.Title) != "", "title", "must be provided")
	v.checkCond(utf8.RuneCountInString(t.Title) <= maxTitleLength, "title", "must be atmost 200 characters")
	v.checkCond(slices.Contains(priorities, t.Priority), "priority", "must be one of low, medium, high")
	v.checkCond(t.EstimatedUnits >= 1, "estimatedPomodoros", "must be atleast 1")
	v.checkCond(t.CompletedUnits >= 0, "completedPomodoros", "must not be negative")
	if len(t.AIBreakdown) > 0 {
		v.checkBreakdown(t.AIBreakdown)
	}
}

// checkBreakdown returns the renumbered subtasks, or nil after recording why
// they were rejected.
func (v *validator) checkBreakdown(subtasks []ai.Subtask) []ai.Subtask {
	v.checkCond(len(subtasks) > 0, "breakdown", "must contain at least one subtask")
	out, err := ai.Validate(subtasks)
	if err != nil {
		v.checkCond(false, "breakdown", err.Error())
		return nil
	}
	return out
}

func (v *validator) checkDuration(minutes int) {
	v.checkCond(minutes >= 1, "duration", "must be atleast 1 minute")
	v.checkCond(minutes <= maxDuration, "duration", "must be atmost 180 minutes")
}

func (v *validator) checkNotes(notes string) {
	v.checkCond(utf8.RuneCountInString(notes) <= maxNotesLength, "notes", "must be atmost 1000 characters")
}
