package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/harlequingg/devfocus/internal/timer"
)

var _ timer.Sessions = (*Sessions)(nil)

type request struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

type recorder struct {
	mu   sync.Mutex
	last request
}

func (r *recorder) request() request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// newTestServer serves status and response for every request and records
// the last one it saw.
func newTestServer(t *testing.T, status int, response string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			json.Unmarshal(data, &req.body)
		}
		rec.mu.Lock()
		rec.last = req
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "tok"), rec
}

func TestNewShouldNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost:4000", "http://localhost:4000"},
		{"http://localhost:4000/", "http://localhost:4000"},
		{"https://focus.example.com", "https://focus.example.com"},
	}
	for _, test := range tests {
		if got := New(test.in, "").baseURL; got != test.want {
			t.Errorf("New(%q).baseURL = %q; want %q", test.in, got, test.want)
		}
	}
}

func TestLoginShouldDecodeTokenAndUser(t *testing.T) {
	// Arrange
	c, rec := newTestServer(t, http.StatusOK, `{"token":"abc","message":"Login successful","user":{"id":"u1","email":"ada@example.com","isVerified":true,"totalPomodoros":4,"currentStreak":2,"longestStreak":3}}`)
	c = c.WithToken("")

	// Act
	auth, err := c.Login(context.Background(), "ada@example.com", "hunter22!")

	// Assert
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	req := rec.request()
	if req.method != http.MethodPost || req.path != "/v1/auth/login" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.auth != "" {
		t.Errorf("expected no Authorization header; got %q", req.auth)
	}
	if req.body["email"] != "ada@example.com" || req.body["password"] != "hunter22!" {
		t.Errorf("body = %v", req.body)
	}
	if auth.Token != "abc" || auth.User.ID != "u1" {
		t.Errorf("auth = %+v", auth)
	}
	if auth.User.TotalPomodoros != 4 || auth.User.LongestStreak != 3 {
		t.Errorf("counters = %+v", auth.User.Counters)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		wantMsg    string
		wantFields map[string]string
		wantAuth   bool
		wantVerify bool
	}{
		{
			name:     "plain message",
			status:   http.StatusNotFound,
			response: `{"error":"task not found"}`,
			wantMsg:  "task not found",
		},
		{
			name:       "validation fields",
			status:     http.StatusBadRequest,
			response:   `{"error":{"title":"must be provided"}}`,
			wantMsg:    "invalid input",
			wantFields: map[string]string{"title": "must be provided"},
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			response: `{"error":"invalid or missing authentication token"}`,
			wantMsg:  "invalid or missing authentication token",
			wantAuth: true,
		},
		{
			name:       "unverified login",
			status:     http.StatusForbidden,
			response:   `{"error":"please verify your email","requiresVerification":true,"email":"a@b.co"}`,
			wantMsg:    "please verify your email",
			wantVerify: true,
		},
		{
			name:     "not JSON",
			status:   http.StatusBadGateway,
			response: "upstream down",
			wantMsg:  "upstream down",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			wantMsg: "Internal Server Error",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, _ := newTestServer(t, test.status, test.response)

			_, err := c.GetTask(context.Background(), "t1")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v (%T); want *APIError", err, err)
			}
			if apiErr.Status != test.status {
				t.Errorf("status = %d; want %d", apiErr.Status, test.status)
			}
			if apiErr.Message != test.wantMsg {
				t.Errorf("message = %q; want %q", apiErr.Message, test.wantMsg)
			}
			for k, v := range test.wantFields {
				if apiErr.Fields[k] != v {
					t.Errorf("fields[%s] = %q; want %q", k, apiErr.Fields[k], v)
				}
			}
			var authErr *AuthError
			if got := errors.As(err, &authErr); got != test.wantAuth {
				t.Errorf("AuthError = %v; want %v", got, test.wantAuth)
			}
			if apiErr.RequiresVerification != test.wantVerify {
				t.Errorf("RequiresVerification = %v; want %v", apiErr.RequiresVerification, test.wantVerify)
			}
			if !IsStatus(err, test.status) {
				t.Errorf("IsStatus(err, %d) = false", test.status)
			}
		})
	}
}

func TestListTasksShouldSendCompletedFilter(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"tasks":[{"id":"t1","title":"Write tests","estimatedPomodoros":2,"completedPomodoros":2,"isCompleted":true}],"count":1}`)

	done := true
	tasks, err := c.ListTasks(context.Background(), &done)
	if err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	req := rec.request()
	if req.query != "completed=true" {
		t.Errorf("query = %q; want completed=true", req.query)
	}
	if req.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", req.auth)
	}
	if len(tasks) != 1 || !tasks[0].IsCompleted {
		t.Errorf("tasks = %+v", tasks)
	}

	if _, err := c.ListTasks(context.Background(), nil); err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	if req = rec.request(); req.query != "" {
		t.Errorf("query = %q; want none", req.query)
	}
}

func TestUpdateTaskShouldOnlySendSetFields(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"task":{"id":"t1","title":"Renamed"}}`)

	title := "Renamed"
	task, err := c.UpdateTask(context.Background(), "t1", TaskUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	req := rec.request()
	if req.method != http.MethodPut || req.path != "/v1/tasks/t1" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if len(req.body) != 1 || req.body["title"] != "Renamed" {
		t.Errorf("body = %v; want only title", req.body)
	}
	if task.Title != "Renamed" {
		t.Errorf("title = %q", task.Title)
	}
}

func TestSessionsAdapter(t *testing.T) {
	t.Run("open returns the session id", func(t *testing.T) {
		c, rec := newTestServer(t, http.StatusCreated, `{"session":{"id":"s1","taskId":"t1","duration":25}}`)
		s := &Sessions{Client: c}

		id, err := s.Open(context.Background(), "t1", 25)

		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}
		req := rec.request()
		if id != "s1" {
			t.Errorf("id = %q; want s1", id)
		}
		if req.path != "/v1/sessions" || req.body["taskId"] != "t1" || req.body["duration"] != float64(25) {
			t.Errorf("request = %s %v", req.path, req.body)
		}
	})

	t.Run("complete reports the completion", func(t *testing.T) {
		c, rec := newTestServer(t, http.StatusOK, `{"session":{"id":"s1","completed":true,"completedAt":"2026-03-10T09:25:00Z","notes":"done"},"task":{"id":"t1","completedPomodoros":1},"user":{"totalPomodoros":5,"currentStreak":2,"longestStreak":4},"alreadyCompleted":false}`)
		var got *Completion
		s := &Sessions{Client: c, OnComplete: func(c *Completion) { got = c }}

		err := s.Complete(context.Background(), "s1", "done")

		if err != nil {
			t.Fatalf("Complete returned error: %v", err)
		}
		req := rec.request()
		if req.method != http.MethodPut || req.path != "/v1/sessions/s1/complete" || req.body["notes"] != "done" {
			t.Errorf("request = %s %s %v", req.method, req.path, req.body)
		}
		if got == nil {
			t.Fatal("OnComplete was not called")
		}
		if !got.Session.Completed || got.Session.CompletedAt == nil {
			t.Errorf("session = %+v", got.Session)
		}
		if got.User.TotalPomodoros != 5 || got.Task.CompletedPomodoros != 1 {
			t.Errorf("completion = %+v", got)
		}
	})

	t.Run("complete surfaces errors", func(t *testing.T) {
		c, _ := newTestServer(t, http.StatusForbidden, `{"error":"you do not have permission to access this resource"}`)
		called := false
		s := &Sessions{Client: c, OnComplete: func(*Completion) { called = true }}

		err := s.Complete(context.Background(), "s1", "")

		if !IsStatus(err, http.StatusForbidden) {
			t.Errorf("err = %v; want 403", err)
		}
		if called {
			t.Error("OnComplete should not run on failure")
		}
	})
}

func TestStatsShouldDecodeSummary(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"stats":{"totalPomodoros":9,"todayPomodoros":2,"weekPomodoros":6,"totalFocusTime":225,"totalFocusHours":"3.8","last7Days":[{"day":"Tue","date":"2026-03-10","pomodoros":2}],"byCategory":[{"name":"backend","minutes":150,"hours":"2.5"}]}}`)

	got, err := c.Stats(context.Background())

	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	req := rec.request()
	if req.path != "/v1/sessions/stats" {
		t.Errorf("path = %q", req.path)
	}
	if got.TotalPomodoros != 9 || got.TotalFocusHours != "3.8" {
		t.Errorf("summary = %+v", got)
	}
	if len(got.Last7Days) != 1 || got.Last7Days[0].Pomodoros != 2 {
		t.Errorf("last7Days = %+v", got.Last7Days)
	}
	if len(got.ByCategory) != 1 || got.ByCategory[0].Name != "backend" {
		t.Errorf("byCategory = %+v", got.ByCategory)
	}
}

func TestSuggestBreakShouldOmitUnsetFields(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"suggestion":"Stretch.","fallback":true}`)

	got, err := c.SuggestBreak(context.Background(), 0, "")

	if err != nil {
		t.Fatalf("SuggestBreak returned error: %v", err)
	}
	req := rec.request()
	if len(req.body) != 0 {
		t.Errorf("body = %v; want empty object", req.body)
	}
	if got.Suggestion != "Stretch." || !got.Fallback {
		t.Errorf("suggestion = %+v", got)
	}
}
