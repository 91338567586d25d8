package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"uigen/internal/gateway/entity"
	sessionsvc "uigen/internal/gateway/service/session"
)

type ComponentHandler struct {
	svc *sessionsvc.Service
}

func NewComponentHandler(svc *sessionsvc.Service) *ComponentHandler {
	return &ComponentHandler{svc: svc}
}

type componentData struct {
	Component  entity.ArtifactVersion `json:"component"`
	NewVersion int                    `json:"newVersion,omitempty"`
}

func (h *ComponentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, true)
	if err != nil {
		WriteError(w, err)
		return
	}
	var v entity.ArtifactVersion
	if n == 0 {
		v, err = h.svc.GetCurrent(r.Context(), user, r.PathValue("sessionId"))
	} else {
		v, err = h.svc.GetVersion(r.Context(), user, r.PathValue("sessionId"), n)
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", componentData{Component: v})
}

func (h *ComponentHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, err := h.svc.GetCurrent(r.Context(), user, r.PathValue("sessionId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", componentData{Component: v})
}

func (h *ComponentHandler) Versions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ListVersions(r.Context(), user, r.PathValue("sessionId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", out)
}

func (h *ComponentHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, false)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.svc.SetCurrent(r.Context(), user, r.PathValue("sessionId"), n); err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, fmt.Sprintf("Component version %d set as current", n), map[string]int{"currentVersion": n})
}

func (h *ComponentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, false)
	if err != nil {
		WriteError(w, err)
		return
	}
	var req manualEditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	edit, err := prepareManualEdit(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	v, err := h.svc.ManualEdit(r.Context(), user, r.PathValue("sessionId"), n, edit)
	if err != nil {
		WriteError(w, err)
		return
	}
	data := componentData{Component: v}
	if v.Version != n {
		data.NewVersion = v.Version
	}
	writeOK(w, "Component updated successfully", data)
}

func (h *ComponentHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, false)
	if err != nil {
		WriteError(w, err)
		return
	}
	v, err := h.svc.DuplicateVersion(r.Context(), user, r.PathValue("sessionId"), n)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, fmt.Sprintf("Component version %d duplicated as version %d", n, v.Version), componentData{Component: v, NewVersion: v.Version})
}

func (h *ComponentHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, true)
	if err != nil {
		WriteError(w, err)
		return
	}
	b, err := h.svc.Download(r.Context(), user, r.PathValue("sessionId"), n)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(b.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Content)
}

func (h *ComponentHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	n, err := parseVersion(r, true)
	if err != nil {
		WriteError(w, err)
		return
	}
	link, err := h.svc.DownloadURL(r.Context(), user, r.PathValue("sessionId"), n)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "", link)
}
