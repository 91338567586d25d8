package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"uigen/internal/gateway/apperr"
	"uigen/internal/gateway/entity"
	sessionsvc "uigen/internal/gateway/service/session"
)

type SessionHandler struct {
	svc *sessionsvc.Service
}

func NewSessionHandler(svc *sessionsvc.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type sessionData struct {
	Session *entity.Session `json:"session"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	in, err := prepareListSessions(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.svc.List(r.Context(), user, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", out)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", sessionData{sess})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	in, err := prepareCreateSession(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	sess, err := h.svc.Create(r.Context(), user, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeCreated(w, "Session created successfully", sessionData{sess})
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	in, err := prepareUpdateSession(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	sess, err := h.svc.Update(r.Context(), user, r.PathValue("id"), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "Session updated successfully", sessionData{sess})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "Session deleted successfully", nil)
}

func (h *SessionHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.DuplicateSession(r.Context(), user, r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeCreated(w, "Session duplicated successfully", sessionData{sess})
}

// Export returns the session bundle as a JSON envelope, or as a YAML
// attachment with ?format=yaml.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && format != "json" && format != "yaml" {
		WriteError(w, apperr.Validation([]apperr.FieldError{{Field: "format", Message: "Format must be json or yaml", Value: format}}))
		return
	}
	data, err := h.svc.Export(r.Context(), user, r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if format != "yaml" {
		writeOK(w, "", map[string]any{"exportData": data})
		return
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		WriteError(w, fmt.Errorf("encode yaml export: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(data.SessionInfo.Title+"-export.yaml"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
