package client

import (
	"context"
	"time"

	"github.com/harlequingg/devfocus/internal/stats"
)

type User struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	stats.Counters
}

// Auth is returned by the routes that issue a token.
type Auth struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

type Registration struct {
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requiresVerification"`
	Message              string `json:"message"`
}

type message struct {
	Message string `json:"message"`
}

// Register creates an account and triggers a verification code email. An
// unverified existing account gets a fresh code instead.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Registration, error) {
	var reg Registration
	err := c.post(ctx, "/v1/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &reg)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// VerifyOTP verifies the account and logs in.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*Auth, error) {
	var auth Auth
	if err := c.post(ctx, "/v1/auth/verify-otp", map[string]string{"email": email, "otp": code}, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (c *Client) ResendOTP(ctx context.Context, email string) (string, error) {
	var resp message
	if err := c.post(ctx, "/v1/auth/resend-otp", map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login exchanges credentials for a token. An unverified account fails with
// an *APIError whose RequiresVerification is set.
func (c *Client) Login(ctx context.Context, email, password string) (*Auth, error) {
	var auth Auth
	if err := c.post(ctx, "/v1/auth/login", map[string]string{"email": email, "password": password}, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "/v1/auth/me", &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp message
	if err := c.post(ctx, "/v1/auth/forgot-password", map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// VerifyResetOTP checks a reset code without consuming it.
func (c *Client) VerifyResetOTP(ctx context.Context, email, code string) error {
	return c.post(ctx, "/v1/auth/verify-reset-otp", map[string]string{"email": email, "otp": code}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return c.post(ctx, "/v1/auth/reset-password", map[string]string{
		"email":       email,
		"otp":         code,
		"newPassword": newPassword,
	}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.post(ctx, "/v1/auth/change-password", map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	}, nil)
}
