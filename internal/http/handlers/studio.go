package handlers

import (
	"net/http"
	"strconv"

	"turbogen/internal/middleware"
	"turbogen/internal/studio"
)

type stateResponse struct {
	studio.State
	StatusText  string `json:"status_text,omitempty"`
	ErrorText   string `json:"error_text,omitempty"`
	CanDownload bool   `json:"can_download"`
}

type promptRequest struct {
	Prompt *string `json:"prompt"`
}

type keyRequest struct {
	Key    string  `json:"key"`
	Shift  bool    `json:"shift"`
	Prompt *string `json:"prompt"`
}

type triggerResponse struct {
	Started bool          `json:"started"`
	State   stateResponse `json:"state"`
}

func viewState(s studio.State, locale string) stateResponse {
	return stateResponse{
		State:       s,
		StatusText:  studio.StatusText(s.Status, locale),
		ErrorText:   studio.ErrorText(s.Error, locale),
		CanDownload: s.ImageURL != "",
	}
}

func (a *App) StudioState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	a.json(w, http.StatusOK, viewState(ctrl.State(), middleware.LocaleFromContext(r.Context())))
}

func (a *App) StudioPrompt(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if err := a.decode(w, r, &req); err != nil || req.Prompt == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	ctrl.SetPrompt(*req.Prompt)
	a.json(w, http.StatusOK, viewState(ctrl.State(), middleware.LocaleFromContext(r.Context())))
}

// StudioGenerate is the Generate button. A prompt in the body replaces the
// stored text first; an ignored trigger still answers 200 with started=false.
func (a *App) StudioGenerate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if err := a.decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt != nil {
		ctrl.SetPrompt(*req.Prompt)
	}
	started := ctrl.Start(r.Context())
	a.respondTrigger(w, r, ctrl, started)
}

// StudioKeys receives key presses from the prompt box.
func (a *App) StudioKeys(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	var req keyRequest
	if err := a.decode(w, r, &req); err != nil || req.Key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "key is required")
		return
	}
	if req.Prompt != nil {
		ctrl.SetPrompt(*req.Prompt)
	}
	started := ctrl.HandleKey(r.Context(), req.Key, req.Shift)
	a.respondTrigger(w, r, ctrl, started)
}

func (a *App) respondTrigger(w http.ResponseWriter, r *http.Request, ctrl *studio.Controller, started bool) {
	a.json(w, http.StatusOK, triggerResponse{
		Started: started,
		State:   viewState(ctrl.State(), middleware.LocaleFromContext(r.Context())),
	})
}

func (a *App) StudioCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.controller(w, r)
	if !ok {
		return
	}
	canceled := ctrl.Cancel()
	a.json(w, http.StatusOK, map[string]any{
		"canceled": canceled,
		"state":    viewState(ctrl.State(), middleware.LocaleFromContext(r.Context())),
	})
}

// StudioDownload streams the current image as an attachment. When there is
// nothing to download, or the fetch fails, it answers 204 so the page stays put.
func (a *App) StudioDownload(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		a.error(w, http.StatusBadRequest, "no_session", "session cookie required")
		return
	}
	ctrl, ok := a.Registry.Lookup(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	file := ctrl.Download(r.Context())
	if file == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
