package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type envelope map[string]any

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"status":      "available",
		"environment": app.config.env,
		"version":     version,
	})
}

func (app *application) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.New("the requested resource could not be found"), http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.Marshal(data)
	if err != nil {
		log.Println(err)
		writeError(w, errors.New("the server encountered a problem and could not process your request"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(js, '\n'))
}

func writeError(w http.ResponseWriter, err error, statusCode int) {
	var body any = err.Error()
	var vErr *validationError
	if errors.As(err, &vErr) {
		body = vErr.fields
	}
	js, mErr := json.Marshal(envelope{"error": body})
	if mErr != nil {
		log.Println(mErr)
		js = []byte(`{"error":"internal server error"}`)
	}
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	w.Write(append(js, '\n'))
}

// errorResponse writes err with the status its kind maps to. Server errors
// are logged and replaced with a generic message.
func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusBadGateway:
		app.logError(r, err)
		err = errAIFailed
	case errors.Is(err, errEmailFailed):
		app.logError(r, err)
		err = errEmailFailed
	case status >= http.StatusInternalServerError:
		app.logError(r, err)
		err = errors.New("the server encountered a problem and could not process your request")
	}
	writeError(w, err, status)
}

func (app *application) logError(r *http.Request, err error) {
	log.Printf("%s %s: %v", r.Method, r.URL.RequestURI(), err)
}

const msgEmptyBody = "body must not be empty"

// readOptionalJSON is readJSON for endpoints whose body may be omitted.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := readJSON(w, r, dst)
	var bErr *badRequestError
	if errors.As(err, &bErr) && bErr.msg == msgEmptyBody {
		return nil
	}
	return err
}

// readJSON decodes a single JSON value from the request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxError):
			return &badRequestError{fmt.Sprintf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &badRequestError{"body contains badly-formed JSON"}
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return &badRequestError{fmt.Sprintf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)}
			}
			return &badRequestError{fmt.Sprintf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)}
		case errors.Is(err, io.EOF):
			return &badRequestError{msgEmptyBody}
		case errors.As(err, &maxBytesError):
			return &badRequestError{fmt.Sprintf("body must not be larger than %d bytes", maxBytesError.Limit)}
		default:
			return err
		}
	}

	if dec.More() {
		return &badRequestError{"body must only contain a single JSON value"}
	}
	return nil
}

// idParam parses the {id} path value. Malformed ids cannot name a record.
func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		return uuid.Nil, errRecordNotFound
	}
	return id, nil
}
