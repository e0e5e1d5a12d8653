package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"turbogen/internal/infra"
	"turbogen/internal/middleware"
	"turbogen/internal/studio"
)

// maxBodyBytes bounds JSON request bodies; prompts are short.
const maxBodyBytes = 64 << 10

type App struct {
	Registry *studio.Registry
	Logger   *infra.Logger
}

func NewApp(registry *studio.Registry, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &App{Registry: registry, Logger: logger}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]errorBody{"error": {Code: errCode, Message: msg}})
}

// decode reads an optional JSON body into v. An empty body is not an error.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// controller returns the session's controller, answering the request itself
// when there is no session.
func (a *App) controller(w http.ResponseWriter, r *http.Request) (*studio.Controller, bool) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		a.error(w, http.StatusBadRequest, "no_session", "session cookie required")
		return nil, false
	}
	return a.Registry.Get(id), true
}
