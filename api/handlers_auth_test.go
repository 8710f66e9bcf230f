package main

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestFocusFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	creds := envelope{"email": "ada@example.com", "password": "pa55word!"}

	// Register
	var reg authResponse
	status := env.do("POST", "/v1/auth/register", "", envelope{"name": "Ada", "email": "Ada@Example.com ", "password": "pa55word!"}, &reg)
	if status != http.StatusCreated || !reg.RequiresVerification || reg.Email != "ada@example.com" {
		t.Fatalf("register = %d %+v", status, reg)
	}

	// Login before verification
	var login authResponse
	status = env.do("POST", "/v1/auth/login", "", creds, &login)
	if status != http.StatusForbidden || !login.RequiresVerification || login.Token != "" {
		t.Fatalf("login before verification = %d %+v; want 403 requiring verification", status, login)
	}

	// Verify
	var verified authResponse
	status = env.do("POST", "/v1/auth/verify-otp", "", envelope{"email": "ada@example.com", "otp": env.mailer.code(otpPurposeVerify, "ada@example.com")}, &verified)
	if status != http.StatusOK || verified.Token == "" || !verified.User.IsVerified {
		t.Fatalf("verify = %d %+v", status, verified)
	}

	// Login after verification
	status = env.do("POST", "/v1/auth/login", "", creds, &login)
	if status != http.StatusOK || login.Token == "" {
		t.Fatalf("login after verification = %d %+v", status, login)
	}
	token := login.Token

	// Task, session, completion
	task := env.createTask(token, envelope{"title": "Write the stats endpoint", "estimatedPomodoros": 1})
	if task.IsCompleted || task.CompletedPomodoros != 0 {
		t.Fatalf("new task = %+v", task)
	}
	sess := env.openSession(token, task.ID)
	if sess.Completed || sess.CompletedAt != nil || sess.Duration != 25 {
		t.Fatalf("new session = %+v", sess)
	}

	env.clock.advance(25 * time.Minute)
	var done completionResponse
	status = env.do("PUT", "/v1/sessions/"+sess.ID+"/complete", token, envelope{"notes": "schema done"}, &done)
	if status != http.StatusOK {
		t.Fatalf("complete = %d %v", status, done.Error)
	}
	if !done.Session.Completed || done.Session.CompletedAt == nil || done.Session.Notes != "schema done" {
		t.Errorf("completed session = %+v", done.Session)
	}
	if done.Task == nil || !done.Task.IsCompleted || done.Task.CompletedPomodoros != 1 {
		t.Errorf("task after completion = %+v; want completed with 1 pomodoro", done.Task)
	}
	if done.User.TotalPomodoros != 1 || done.User.CurrentStreak != 1 || done.User.LongestStreak != 1 {
		t.Errorf("user counters = %+v; want 1/1/1", done.User)
	}

	// Stats
	env.clock.advance(time.Minute)
	var stats struct {
		Stats struct {
			TotalPomodoros int
			TodayPomodoros int
			WeekPomodoros  int
			CurrentStreak  int
			TotalFocusTime int
			Last7Days      []struct {
				Date      string
				Pomodoros int
			}
			ByCategory []struct {
				Name    string
				Minutes int
			}
		}
	}
	if status := env.do("GET", "/v1/sessions/stats", token, nil, &stats); status != http.StatusOK {
		t.Fatalf("stats = %d", status)
	}
	s := stats.Stats
	if s.TotalPomodoros != 1 || s.TodayPomodoros != 1 || s.WeekPomodoros != 1 || s.CurrentStreak != 1 || s.TotalFocusTime != 25 {
		t.Errorf("stats = %+v", s)
	}
	if len(s.Last7Days) != 7 || s.Last7Days[6].Date != "2026-03-10" || s.Last7Days[6].Pomodoros != 1 {
		t.Errorf("last7Days = %+v", s.Last7Days)
	}
	if len(s.ByCategory) != 1 || s.ByCategory[0].Name != "general" || s.ByCategory[0].Minutes != 25 {
		t.Errorf("byCategory = %+v", s.ByCategory)
	}

	// Me reflects the counters
	var me authResponse
	env.do("GET", "/v1/auth/me", token, nil, &me)
	if me.User.TotalPomodoros != 1 || me.User.CurrentStreak != 1 {
		t.Errorf("me = %+v", me.User)
	}
}

func TestRegister(t *testing.T) {
	t.Run("rejects invalid input", func(t *testing.T) {
		env := newTestEnv(t)
		var out authResponse

		status := env.do("POST", "/v1/auth/register", "", envelope{"name": "", "email": "not-an-email", "password": "short"}, &out)

		if status != http.StatusBadRequest {
			t.Fatalf("status = %d; want 400", status)
		}
		for _, field := range []string{"name", "email", "password"} {
			if errorField(out.Error, field) == "" {
				t.Errorf("expected an error for %s; got %v", field, out.Error)
			}
		}
	})

	t.Run("rejects a verified email", func(t *testing.T) {
		env := newTestEnv(t)
		env.signUp("Ada", "ada@example.com")
		var out authResponse

		status := env.do("POST", "/v1/auth/register", "", envelope{"name": "Ada", "email": "ada@example.com", "password": "pa55word!"}, &out)

		if status != http.StatusBadRequest || out.Error != errDuplicateEmail.Error() {
			t.Errorf("register = %d %v; want 400 duplicate email", status, out.Error)
		}
	})

	t.Run("resends the code to an unverified email", func(t *testing.T) {
		env := newTestEnv(t)
		body := envelope{"name": "Ada", "email": "ada@example.com", "password": "pa55word!"}
		env.do("POST", "/v1/auth/register", "", body, nil)

		var out authResponse
		status := env.do("POST", "/v1/auth/register", "", body, &out)

		if status != http.StatusOK || !out.RequiresVerification {
			t.Fatalf("second register = %d %+v; want 200", status, out)
		}
		if n := env.mailer.count(); n != 2 {
			t.Errorf("sent %d emails; want 2", n)
		}
		status = env.do("POST", "/v1/auth/verify-otp", "", envelope{"email": "ada@example.com", "otp": env.mailer.code(otpPurposeVerify, "ada@example.com")}, nil)
		if status != http.StatusOK {
			t.Errorf("verify with resent code = %d; want 200", status)
		}
	})

	t.Run("undoes the account when the email cannot be sent", func(t *testing.T) {
		env := newTestEnv(t)
		body := envelope{"name": "Ada", "email": "ada@example.com", "password": "pa55word!"}
		env.mailer.fail(errors.New("smtp unavailable"))

		var out authResponse
		status := env.do("POST", "/v1/auth/register", "", body, &out)
		if status != http.StatusInternalServerError || out.Error != errEmailFailed.Error() {
			t.Fatalf("register = %d %v; want 500 email failure", status, out.Error)
		}

		env.mailer.fail(nil)
		if status := env.do("POST", "/v1/auth/register", "", body, nil); status != http.StatusCreated {
			t.Errorf("register after failure = %d; want 201 (user should have been removed)", status)
		}
	})
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		otp     func(env *testEnv) string
		advance time.Duration
		want    int
		wantErr string
	}{
		{
			name:  "unknown email",
			email: "nobody@example.com",
			otp:   func(*testEnv) string { return "123456" },
			want:  http.StatusNotFound,
		},
		{
			name:    "wrong code",
			email:   "ada@example.com",
			otp:     func(env *testEnv) string { return wrongCode(env.mailer.code(otpPurposeVerify, "ada@example.com")) },
			want:    http.StatusBadRequest,
			wantErr: errInvalidOTP.Error(),
		},
		{
			name:    "expired code",
			email:   "ada@example.com",
			otp:     func(env *testEnv) string { return env.mailer.code(otpPurposeVerify, "ada@example.com") },
			advance: otpTTL,
			want:    http.StatusBadRequest,
			wantErr: errExpiredOTP.Error(),
		},
		{
			name:    "code just before expiry",
			email:   "ada@example.com",
			otp:     func(env *testEnv) string { return env.mailer.code(otpPurposeVerify, "ada@example.com") },
			advance: otpTTL - time.Second,
			want:    http.StatusOK,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)
			env.do("POST", "/v1/auth/register", "", envelope{"name": "Ada", "email": "ada@example.com", "password": "pa55word!"}, nil)
			env.clock.advance(test.advance)

			// Act
			var out authResponse
			status := env.do("POST", "/v1/auth/verify-otp", "", envelope{"email": test.email, "otp": test.otp(env)}, &out)

			// Assert
			if status != test.want {
				t.Errorf("status = %d; want %d (%v)", status, test.want, out.Error)
			}
			if test.wantErr != "" && out.Error != test.wantErr {
				t.Errorf("error = %v; want %q", out.Error, test.wantErr)
			}
		})
	}
}

func TestVerifyOTPTwiceShouldFail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("Ada", "ada@example.com")

	var out authResponse
	status := env.do("POST", "/v1/auth/verify-otp", "", envelope{"email": "ada@example.com", "otp": "000000"}, &out)
	if status != http.StatusBadRequest || out.Error != errAlreadyVerified.Error() {
		t.Errorf("verify again = %d %v; want already verified", status, out.Error)
	}
	status = env.do("POST", "/v1/auth/resend-otp", "", envelope{"email": "ada@example.com"}, &out)
	if status != http.StatusBadRequest {
		t.Errorf("resend for verified = %d; want 400", status)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("Ada", "ada@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{name: "unknown email", email: "bob@example.com", password: "pa55word!", want: http.StatusUnauthorized},
		{name: "wrong password", email: "ada@example.com", password: "wrong-password", want: http.StatusUnauthorized},
		{name: "missing password", email: "ada@example.com", password: "", want: http.StatusBadRequest},
		{name: "correct", email: "ADA@example.com", password: "pa55word!", want: http.StatusOK},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status := env.do("POST", "/v1/auth/login", "", envelope{"email": test.email, "password": test.password}, nil)
			if status != test.want {
				t.Errorf("status = %d; want %d", status, test.want)
			}
		})
	}
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("Ada", "ada@example.com")

	// Unknown addresses get the same answer.
	if status := env.do("POST", "/v1/auth/forgot-password", "", envelope{"email": "bob@example.com"}, nil); status != http.StatusOK {
		t.Fatalf("forgot for unknown = %d; want 200", status)
	}

	if status := env.do("POST", "/v1/auth/forgot-password", "", envelope{"email": "ada@example.com"}, nil); status != http.StatusOK {
		t.Fatalf("forgot = %d", status)
	}
	code := env.mailer.code(otpPurposeReset, "ada@example.com")
	if code == "" {
		t.Fatal("no reset code sent")
	}

	if status := env.do("POST", "/v1/auth/verify-reset-otp", "", envelope{"email": "ada@example.com", "otp": wrongCode(code)}, nil); status != http.StatusBadRequest {
		t.Errorf("verify-reset with wrong code = %d; want 400", status)
	}
	if status := env.do("POST", "/v1/auth/verify-reset-otp", "", envelope{"email": "ada@example.com", "otp": code}, nil); status != http.StatusOK {
		t.Errorf("verify-reset = %d; want 200", status)
	}

	reset := envelope{"email": "ada@example.com", "otp": code, "newPassword": "n3w-passw0rd"}
	if status := env.do("POST", "/v1/auth/reset-password", "", reset, nil); status != http.StatusOK {
		t.Fatalf("reset = %d", status)
	}
	var out authResponse
	if status := env.do("POST", "/v1/auth/reset-password", "", reset, &out); status != http.StatusBadRequest || out.Error != errNoResetOTP.Error() {
		t.Errorf("reusing the code = %d %v; want 400 no reset code", status, out.Error)
	}

	if status := env.do("POST", "/v1/auth/login", "", envelope{"email": "ada@example.com", "password": "pa55word!"}, nil); status != http.StatusUnauthorized {
		t.Errorf("login with old password = %d; want 401", status)
	}
	if status := env.do("POST", "/v1/auth/login", "", envelope{"email": "ada@example.com", "password": "n3w-passw0rd"}, nil); status != http.StatusOK {
		t.Errorf("login with new password = %d; want 200", status)
	}
}

func TestResetCodeCannotVerifyAccount(t *testing.T) {
	env := newTestEnv(t)
	env.do("POST", "/v1/auth/register", "", envelope{"name": "Ada", "email": "ada@example.com", "password": "pa55word!"}, nil)
	env.do("POST", "/v1/auth/forgot-password", "", envelope{"email": "ada@example.com"}, nil)

	status := env.do("POST", "/v1/auth/verify-otp", "", envelope{"email": "ada@example.com", "otp": env.mailer.code(otpPurposeReset, "ada@example.com")}, nil)

	if status != http.StatusBadRequest {
		t.Errorf("verify with reset code = %d; want 400", status)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp("Ada", "ada@example.com")

	status := env.do("POST", "/v1/auth/change-password", token, envelope{"currentPassword": "nope-nope", "newPassword": "n3w-passw0rd"}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("wrong current password = %d; want 401", status)
	}
	status = env.do("POST", "/v1/auth/change-password", token, envelope{"currentPassword": "pa55word!", "newPassword": "short"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("short new password = %d; want 400", status)
	}
	status = env.do("POST", "/v1/auth/change-password", token, envelope{"currentPassword": "pa55word!", "newPassword": "n3w-passw0rd"}, nil)
	if status != http.StatusOK {
		t.Fatalf("change = %d", status)
	}
	if status := env.do("POST", "/v1/auth/login", "", envelope{"email": "ada@example.com", "password": "n3w-passw0rd"}, nil); status != http.StatusOK {
		t.Errorf("login with changed password = %d; want 200", status)
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp("Ada", "ada@example.com")

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + token},
		{name: "garbage token", header: "Bearer not.a.token"},
		{name: "tampered token", header: "Bearer " + token + "x"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", env.srv.URL+"/v1/auth/me", nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}
			res, err := env.srv.Client().Do(req)
			if err != nil {
				t.Fatal(err)
			}
			res.Body.Close()
			if res.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d; want 401", res.StatusCode)
			}
		})
	}

	t.Run("expired token", func(t *testing.T) {
		env.clock.advance(env.app.config.jwt.ttl)
		if status := env.do("GET", "/v1/auth/me", token, nil, nil); status != http.StatusUnauthorized {
			t.Errorf("status = %d; want 401", status)
		}
	})
}

// wrongCode returns a six digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
