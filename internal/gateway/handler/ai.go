package handler

import (
	"net/http"

	sessionsvc "uigen/internal/gateway/service/session"
)

// AIHandler serves generation, refinement and chat.
type AIHandler struct {
	svc *sessionsvc.Service
}

func NewAIHandler(svc *sessionsvc.Service) *AIHandler {
	return &AIHandler{svc: svc}
}

func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	in, err := prepareGenerate(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.svc.Generate(r.Context(), user, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "Component generated successfully", out)
}

func (h *AIHandler) Refine(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req refineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	in, err := prepareRefine(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.svc.Refine(r.Context(), user, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeOK(w, "Component refined successfully", out)
}

func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	in, err := prepareChat(req)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.svc.Chat(r.Context(), user, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: out, Metadata: out.Metadata})
}

func (h *AIHandler) Models(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "", h.svc.Models())
}
