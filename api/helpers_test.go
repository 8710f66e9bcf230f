package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/harlequingg/devfocus/internal/ai"
)

// recordingMailer keeps the last code sent per purpose and address.
type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: make(map[string]string)}
}

func (m *recordingMailer) sendOTP(to, name, code, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes[purpose+":"+to] = code
	m.sent++
	return nil
}

func (m *recordingMailer) code(purpose, email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[purpose+":"+email]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func (m *recordingMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type stubAI struct {
	mu         sync.Mutex
	subtasks   []ai.Subtask
	err        error
	suggestion string
	suggestErr error
	lastCount  int
	lastTime   string
}

func (s *stubAI) Breakdown(ctx context.Context, title, description string) ([]ai.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtasks, s.err
}

func (s *stubAI) SuggestBreak(ctx context.Context, sessionCount int, timeOfDay string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCount = sessionCount
	s.lastTime = timeOfDay
	return s.suggestion, s.suggestErr
}

func (s *stubAI) lastArgs() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCount, s.lastTime
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	t      *testing.T
	app    *application
	srv    *httptest.Server
	mailer *recordingMailer
	ai     *stubAI
	clock  *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bcryptCost = bcrypt.MinCost

	clock := &testClock{t: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	var cfg config
	cfg.env = "testing"
	cfg.location = time.UTC
	cfg.jwt.secret = "test-secret-with-enough-entropy"
	cfg.jwt.ttl = 24 * time.Hour

	env := &testEnv{
		t:      t,
		mailer: newRecordingMailer(),
		ai:     &stubAI{},
		clock:  clock,
	}
	env.app = &application{
		config:  cfg,
		storage: newMemoryStorage(clock.now),
		mailer:  env.mailer,
		ai:      env.ai,
		now:     clock.now,
	}
	env.srv = httptest.NewServer(composeRoutes(env.app))
	t.Cleanup(env.srv.Close)
	return env
}

// do sends body as JSON (strings are sent verbatim) and decodes the response
// into dst when dst is not nil. It returns the status code.
func (e *testEnv) do(method, path, token string, body, dst any) int {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		js, err := json.Marshal(b)
		if err != nil {
			e.t.Fatal(err)
		}
		r = bytes.NewReader(js)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		e.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatal(err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		e.t.Fatal(err)
	}
	if dst != nil {
		if err := json.Unmarshal(data, dst); err != nil {
			e.t.Fatalf("%s %s: decoding %q: %v", method, path, data, err)
		}
	}
	return res.StatusCode
}

// signUp registers and verifies a user and returns its access token.
func (e *testEnv) signUp(name, email string) string {
	e.t.Helper()
	status := e.do("POST", "/v1/auth/register", "", envelope{"name": name, "email": email, "password": "pa55word!"}, nil)
	if status != http.StatusCreated {
		e.t.Fatalf("register %s: status %d", email, status)
	}
	var out authResponse
	status = e.do("POST", "/v1/auth/verify-otp", "", envelope{"email": email, "otp": e.mailer.code(otpPurposeVerify, email)}, &out)
	if status != http.StatusOK || out.Token == "" {
		e.t.Fatalf("verify %s: status %d", email, status)
	}
	return out.Token
}

// login signs in a user created by signUp and returns a fresh token.
func (e *testEnv) login(email string) string {
	e.t.Helper()
	var out authResponse
	status := e.do("POST", "/v1/auth/login", "", envelope{"email": email, "password": "pa55word!"}, &out)
	if status != http.StatusOK || out.Token == "" {
		e.t.Fatalf("login %s: status %d", email, status)
	}
	return out.Token
}

func (e *testEnv) createTask(token string, body envelope) taskJSON {
	e.t.Helper()
	var out taskResponse
	if status := e.do("POST", "/v1/tasks", token, body, &out); status != http.StatusCreated {
		e.t.Fatalf("create task: status %d, error %v", status, out.Error)
	}
	return out.Task
}

func (e *testEnv) openSession(token, taskID string) sessionJSON {
	e.t.Helper()
	var out struct {
		Session sessionJSON
		Error   any
	}
	if status := e.do("POST", "/v1/sessions", token, envelope{"taskId": taskID}, &out); status != http.StatusCreated {
		e.t.Fatalf("open session: status %d, error %v", status, out.Error)
	}
	return out.Session
}

// Response shapes. Field matching in encoding/json is case-insensitive, so
// most fields need no tags.

type userJSON struct {
	ID             string
	Email          string
	IsVerified     bool
	TotalPomodoros int
	CurrentStreak  int
	LongestStreak  int
}

type authResponse struct {
	Token                string
	User                 userJSON
	Email                string
	RequiresVerification bool
	Message              string
	Error                any
}

type taskJSON struct {
	ID                 string
	Title              string
	Category           string
	Priority           string
	EstimatedPomodoros int
	CompletedPomodoros int
	IsCompleted        bool
	AIGenerated        bool
	AIBreakdown        []ai.Subtask
}

type taskResponse struct {
	Task  taskJSON
	Error any
}

type sessionJSON struct {
	ID          string
	TaskID      *string
	Duration    int
	Completed   bool
	CompletedAt *time.Time
	Notes       string
}

type completionResponse struct {
	Session          sessionJSON
	Task             *taskJSON
	User             userJSON
	AlreadyCompleted bool
	Error            any
}

// errorField returns the message for field from a validation error body.
func errorField(body any, field string) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	v, ok := m[field]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}
