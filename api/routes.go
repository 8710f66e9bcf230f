package main

import (
	"net/http"
)

func composeRoutes(app *application) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", app.notFoundHandler)
	mux.HandleFunc("GET /v1/healthcheck", app.healthCheckHandler)

	mux.HandleFunc("POST /v1/auth/register", app.registerHandler)
	mux.HandleFunc("POST /v1/auth/verify-otp", app.verifyOTPHandler)
	mux.HandleFunc("POST /v1/auth/resend-otp", app.resendOTPHandler)
	mux.HandleFunc("POST /v1/auth/login", app.loginHandler)
	mux.HandleFunc("POST /v1/auth/forgot-password", app.forgotPasswordHandler)
	mux.HandleFunc("POST /v1/auth/verify-reset-otp", app.verifyResetOTPHandler)
	mux.HandleFunc("POST /v1/auth/reset-password", app.resetPasswordHandler)
	mux.HandleFunc("GET /v1/auth/me", app.requireVerifiedUser(app.meHandler))
	mux.HandleFunc("POST /v1/auth/change-password", app.requireVerifiedUser(app.changePasswordHandler))

	mux.HandleFunc("POST /v1/tasks", app.requireVerifiedUser(app.createTaskHandler))
	mux.HandleFunc("GET /v1/tasks", app.requireVerifiedUser(app.listTasksHandler))
	mux.HandleFunc("GET /v1/tasks/{id}", app.requireVerifiedUser(app.getTaskHandler))
	mux.HandleFunc("PUT /v1/tasks/{id}", app.requireVerifiedUser(app.updateTaskHandler))
	mux.HandleFunc("DELETE /v1/tasks/{id}", app.requireVerifiedUser(app.deleteTaskHandler))
	mux.HandleFunc("PUT /v1/tasks/{id}/increment", app.requireVerifiedUser(app.incrementTaskHandler))
	mux.HandleFunc("PUT /v1/tasks/{id}/breakdown", app.requireVerifiedUser(app.applyBreakdownHandler))

	mux.HandleFunc("POST /v1/sessions", app.requireVerifiedUser(app.createSessionHandler))
	mux.HandleFunc("GET /v1/sessions", app.requireVerifiedUser(app.listSessionsHandler))
	mux.HandleFunc("GET /v1/sessions/stats", app.requireVerifiedUser(app.sessionStatsHandler))
	mux.HandleFunc("PUT /v1/sessions/{id}/complete", app.requireVerifiedUser(app.completeSessionHandler))

	mux.HandleFunc("POST /v1/ai/breakdown", app.requireVerifiedUser(app.breakdownHandler))
	mux.HandleFunc("POST /v1/ai/suggest-break", app.requireVerifiedUser(app.suggestBreakHandler))

	var handler http.Handler = mux
	if app.config.limiter.enabled {
		handler = app.rateLimit(handler)
	}
	handler = app.enableCORS(handler)
	if app.config.logRequests {
		handler = logRequests(handler)
	}
	return app.recoverPanic(handler)
}
