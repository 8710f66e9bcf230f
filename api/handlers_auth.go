package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harlequingg/devfocus/internal/stats"
)

var bcryptCost = 12

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// deliverOTP issues a code for purpose, stores it on u and mails it.
func (app *application) deliverOTP(r *http.Request, u *user, purpose string) error {
	code, err := issueOTP(u, purpose, app.now())
	if err != nil {
		return err
	}
	if err := app.storage.updateUser(r.Context(), u); err != nil {
		return err
	}
	if err := app.mailer.sendOTP(u.Email, u.Name, code, purpose); err != nil {
		return fmt.Errorf("%w: %v", errEmailFailed, err)
	}
	return nil
}

// authResponse is what a successful login or verification returns.
func (app *application) authResponse(w http.ResponseWriter, r *http.Request, u *user, status int, message string) {
	token, err := app.newToken(u.ID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	u.CurrentStreak = stats.EffectiveStreak(u.Counters, app.now(), app.config.location)
	writeJSON(w, status, envelope{"token": token, "user": u, "message": message})
}

func (app *application) registerHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	v := newValidator()
	v.checkName(input.Name)
	v.checkEmail(input.Email)
	v.checkPassword("password", input.Password)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	existing, err := app.storage.getUserByEmail(r.Context(), input.Email)
	switch {
	case err == nil && existing.IsVerified:
		app.errorResponse(w, r, errDuplicateEmail)
		return
	case err == nil:
		if err := app.deliverOTP(r, existing, otpPurposeVerify); err != nil {
			app.errorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			"email":                existing.Email,
			"requiresVerification": true,
			"message":              "Account exists but is not verified. A new code was sent to your email.",
		})
		return
	case !errors.Is(err, errRecordNotFound):
		app.errorResponse(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	u := &user{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	code, err := issueOTP(u, otpPurposeVerify, app.now())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.storage.insertUser(r.Context(), u); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.mailer.sendOTP(u.Email, u.Name, code, otpPurposeVerify); err != nil {
		// An account nobody can verify is useless, so registration is undone.
		if delErr := app.storage.deleteUser(r.Context(), u.ID); delErr != nil {
			app.logError(r, delErr)
		}
		app.errorResponse(w, r, fmt.Errorf("%w: %v", errEmailFailed, err))
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"email":                u.Email,
		"requiresVerification": true,
		"message":              "Registration successful! Check your email for the verification code.",
	})
}

func (app *application) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)
	input.OTP = strings.TrimSpace(input.OTP)

	v := newValidator()
	v.checkEmail(input.Email)
	v.checkOTP(input.OTP)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errUserNotFound))
		return
	}
	if u.IsVerified {
		app.errorResponse(w, r, errAlreadyVerified)
		return
	}
	if err := checkOTP(u, otpPurposeVerify, input.OTP, app.now()); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	u.IsVerified = true
	clearOTP(u)
	if err := app.storage.updateUser(r.Context(), u); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.authResponse(w, r, u, http.StatusOK, "Email verified successfully")
}

func (app *application) resendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)

	v := newValidator()
	v.checkEmail(input.Email)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errUserNotFound))
		return
	}
	if u.IsVerified {
		app.errorResponse(w, r, errAlreadyVerified)
		return
	}
	if err := app.deliverOTP(r, u, otpPurposeVerify); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "New verification code sent to your email"})
}

func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)

	v := newValidator()
	v.checkCond(input.Email != "", "email", "must be provided")
	v.checkCond(input.Password != "", "password", "must be provided")
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if errors.Is(err, errRecordNotFound) {
		app.errorResponse(w, r, errInvalidCredentials)
		return
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(input.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		app.errorResponse(w, r, errInvalidCredentials)
		return
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if !u.IsVerified {
		writeJSON(w, http.StatusForbidden, envelope{
			"error":                errUnverified.Error(),
			"requiresVerification": true,
			"email":                u.Email,
		})
		return
	}
	app.authResponse(w, r, u, http.StatusOK, "Login successful")
}

func (app *application) meHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	u.CurrentStreak = stats.EffectiveStreak(u.Counters, app.now(), app.config.location)
	writeJSON(w, http.StatusOK, envelope{"user": u})
}

func (app *application) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)

	v := newValidator()
	v.checkEmail(input.Email)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	const message = "If this email exists, you will receive a code to reset your password."
	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if errors.Is(err, errRecordNotFound) {
		writeJSON(w, http.StatusOK, envelope{"message": message})
		return
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.deliverOTP(r, u, otpPurposeReset); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": message})
}

func (app *application) verifyResetOTPHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)
	input.OTP = strings.TrimSpace(input.OTP)

	v := newValidator()
	v.checkEmail(input.Email)
	v.checkOTP(input.OTP)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errUserNotFound))
		return
	}
	if err := checkOTP(u, otpPurposeReset, input.OTP, app.now()); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Code verified successfully"})
}

func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	input.Email = normalizeEmail(input.Email)
	input.OTP = strings.TrimSpace(input.OTP)

	v := newValidator()
	v.checkEmail(input.Email)
	v.checkOTP(input.OTP)
	v.checkPassword("newPassword", input.NewPassword)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u, err := app.storage.getUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.errorResponse(w, r, orNotFound(err, errUserNotFound))
		return
	}
	if err := checkOTP(u, otpPurposeReset, input.OTP, app.now()); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcryptCost)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	u.PasswordHash = hash
	clearOTP(u)
	if err := app.storage.updateUser(r.Context(), u); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Password reset successful. Please login with your new password."})
}

func (app *application) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := readJSON(w, r, &input); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	v := newValidator()
	v.checkCond(input.CurrentPassword != "", "currentPassword", "must be provided")
	v.checkPassword("newPassword", input.NewPassword)
	if v.hasErrors() {
		app.errorResponse(w, r, v.toError())
		return
	}

	u := getUserFromRequest(r)
	err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(input.CurrentPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		app.errorResponse(w, r, errWrongPassword)
		return
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcryptCost)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	u.PasswordHash = hash
	if err := app.storage.updateUser(r.Context(), u); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Password updated successfully"})
}
