package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient points a Client at handler and removes retry delays.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	c.retryDelay = time.Millisecond
	return c
}

func reply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestBreakdownShouldParseFencedJSON(t *testing.T) {
	// Arrange
	var gotAuth, gotModel string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		reply("Here you go:\n```json\n[{\"pomodoroNumber\":1,\"subtask\":\"Set up schema\",\"steps\":[\"Write migration\",\" \"],\"difficulty\":1},{\"pomodoroNumber\":2,\"subtask\":\"Wire handler\",\"steps\":[\"Add route\",\"Add test\"],\"difficulty\":3}]\n```")(w, r)
	})

	// Act
	got, err := c.Breakdown(context.Background(), "Build stats endpoint", "")

	// Assert
	if err != nil {
		t.Fatalf("Breakdown returned error: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q; want bearer key", gotAuth)
	}
	if gotModel != DefaultModel {
		t.Errorf("model = %q; want %q", gotModel, DefaultModel)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2", len(got))
	}
	if got[0].Index != 1 || got[1].Index != 2 {
		t.Errorf("indices = %d,%d; want 1,2", got[0].Index, got[1].Index)
	}
	if len(got[0].Steps) != 1 {
		t.Errorf("blank steps should be dropped; got %q", got[0].Steps)
	}
	if got[1].Difficulty != 3 {
		t.Errorf("difficulty = %d; want 3", got[1].Difficulty)
	}
}

func TestBreakdownErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Kind
	}{
		{name: "plain prose", content: "Sorry, I cannot help with that.", want: KindParse},
		{name: "broken JSON", content: "[{\"subtask\": \"a\", ", want: KindParse},
		{name: "difficulty as string", content: `[{"subtask":"a","steps":["x"],"difficulty":"hard"}]`, want: KindParse},
		{name: "empty array", content: "[]", want: KindInvalid},
		{name: "difficulty out of range", content: `[{"subtask":"a","steps":["x"],"difficulty":4}]`, want: KindInvalid},
		{name: "missing steps", content: `[{"subtask":"a","steps":[],"difficulty":2}]`, want: KindInvalid},
		{name: "missing subtask", content: `[{"subtask":"","steps":["x"],"difficulty":2}]`, want: KindInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := newTestClient(t, reply(test.content))

			got, err := c.Breakdown(context.Background(), "title", "desc")

			if got != nil {
				t.Errorf("expected no breakdown on failure; got %+v", got)
			}
			if !IsKind(err, test.want) {
				t.Errorf("err = %v; want kind %s", err, test.want)
			}
		})
	}
}

func TestBreakdownShouldRetryServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		reply(`[{"subtask":"a","steps":["x"],"difficulty":2}]`)(w, r)
	})

	got, err := c.Breakdown(context.Background(), "title", "")
	if err != nil {
		t.Fatalf("Breakdown returned error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d; want 1", len(got))
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d; want 3", n)
	}
}

func TestBreakdownShouldNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	})

	_, err := c.Breakdown(context.Background(), "title", "")
	if !IsKind(err, KindTransport) {
		t.Errorf("err = %v; want transport error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d; want 1", n)
	}
}

func TestBreakdownWithoutAPIKeyShouldFailAsTransport(t *testing.T) {
	c := New(Config{})

	_, err := c.Breakdown(context.Background(), "title", "")
	if !IsKind(err, KindTransport) {
		t.Errorf("err = %v; want transport error", err)
	}
}

func TestSuggestBreak(t *testing.T) {
	t.Run("returns trimmed provider text", func(t *testing.T) {
		c := newTestClient(t, reply("  Walk to the window and roll your shoulders.  "))

		got, err := c.SuggestBreak(context.Background(), 3, "3:04 PM")
		if err != nil {
			t.Fatalf("SuggestBreak returned error: %v", err)
		}
		if got != "Walk to the window and roll your shoulders." {
			t.Errorf("suggestion = %q", got)
		}
	})

	t.Run("falls back when the provider fails", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		got, err := c.SuggestBreak(context.Background(), 1, "9:00 AM")
		if err == nil {
			t.Error("expected the underlying error to be reported")
		}
		if got != FallbackSuggestion {
			t.Errorf("suggestion = %q; want fallback", got)
		}
	})

	t.Run("falls back on empty text", func(t *testing.T) {
		c := newTestClient(t, reply("   "))

		got, err := c.SuggestBreak(context.Background(), 1, "9:00 AM")
		if !IsKind(err, KindParse) {
			t.Errorf("err = %v; want parse error", err)
		}
		if got != FallbackSuggestion {
			t.Errorf("suggestion = %q; want fallback", got)
		}
	})
}
