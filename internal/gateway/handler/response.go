package handler

import (
	"errors"
	"log"
	"net/http"

	"uigen/internal/gateway/apperr"
	llmclient "uigen/internal/llm/client"
	"uigen/internal/util/jsonutil"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message,omitempty"`
	Data     any                 `json:"data,omitempty"`
	Errors   []apperr.FieldError `json:"errors,omitempty"`
	Metadata any                 `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	raw, err := jsonutil.MarshalNoEscape(body)
	if err != nil {
		log.Printf("encode response: %v", err)
		status = http.StatusInternalServerError
		raw = []byte(`{"success":false,"message":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
	_, _ = w.Write([]byte("\n"))
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeCreated(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// WriteError translates err into a status code and failure envelope.
func WriteError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, envelope) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, envelope{Message: apperr.Message(err, "Validation failed"), Errors: apperr.Fields(err)}
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, envelope{Message: apperr.Message(err, "Access token required")}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, envelope{Message: apperr.Message(err, "Not found")}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, envelope{Message: apperr.Message(err, "Conflict")}
	case errors.Is(err, llmclient.ErrInvalidCredential), errors.Is(err, llmclient.ErrMissingCredential):
		return http.StatusInternalServerError, envelope{Message: "Invalid Google API key"}
	case errors.Is(err, llmclient.ErrQuotaExceeded):
		return http.StatusInternalServerError, envelope{Message: "Google API quota exceeded"}
	case errors.Is(err, llmclient.ErrProvider):
		return http.StatusInternalServerError, envelope{Message: "AI Service Error: " + llmclient.Detail(err)}
	default:
		return http.StatusInternalServerError, envelope{Message: "Internal server error"}
	}
}
