package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"uigen/internal/gateway/apperr"
	"uigen/internal/gateway/entity"
	"uigen/internal/gateway/middleware"
	sessionsvc "uigen/internal/gateway/service/session"
)

const maxBodyBytes = 10 << 20

// typeMessages names the expected JSON type of fields that clients most
// often get wrong.
var typeMessages = map[string]string{
	"prompt":           "Prompt must be a string",
	"message":          "Message must be a string",
	"sessionId":        "Session ID must be a string",
	"model":            "Model must be a string",
	"componentVersion": "Component version must be a positive integer",
	"title":            "Title must be a string",
	"description":      "Description must be a string",
	"tags":             "Tags must be an array",
	"status":           "Status must be a string",
	"isPublic":         "isPublic must be a boolean",
	"jsx":              "JSX code must be a string",
	"css":              "CSS must be a string",
	"props":            "Props must be an object",
}

// decodeJSON reads the request body into dst. An empty body leaves dst at
// its zero value so field validation reports what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		msg, ok := typeMessages[typeErr.Field]
		if !ok {
			msg = typeErr.Field + " has an invalid type"
		}
		return apperr.Validation([]apperr.FieldError{{Field: typeErr.Field, Message: msg}})
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation([]apperr.FieldError{{Field: "body", Message: "Request body is too large"}})
	}
	return apperr.Validation([]apperr.FieldError{{Field: "body", Message: "Request body must be valid JSON"}})
}

type checker struct {
	fields []apperr.FieldError
}

func (c *checker) fail(field, msg string, value any) {
	c.fields = append(c.fields, apperr.FieldError{Field: field, Message: msg, Value: value})
}

// length checks the rune length of value. max <= 0 means unbounded.
func (c *checker) length(field, value string, min, max int, msg string) {
	n := utf8.RuneCountInString(value)
	if n < min || (max > 0 && n > max) {
		c.fail(field, msg, value)
	}
}

func (c *checker) err() error {
	return apperr.Validation(c.fields)
}

func requireUser(w http.ResponseWriter, r *http.Request) (entity.UserID, bool) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		WriteError(w, apperr.Unauthorized("Access token required"))
		return "", false
	}
	return user, true
}

// parseVersion reads the {version} path value. "current" maps to zero when
// allowCurrent is set.
func parseVersion(r *http.Request, allowCurrent bool) (int, error) {
	raw := strings.TrimSpace(r.PathValue("version"))
	if allowCurrent && strings.EqualFold(raw, "current") {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation([]apperr.FieldError{{Field: "version", Message: "Version must be a positive integer", Value: raw}})
	}
	return n, nil
}

// ---- ai ----

type generateRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
}

type refineRequest struct {
	Prompt           string `json:"prompt"`
	SessionID        string `json:"sessionId"`
	ComponentVersion *int   `json:"componentVersion"`
	Model            string `json:"model"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
}

func prepareGenerate(req generateRequest) (sessionsvc.GenerateInput, error) {
	var c checker
	prompt := strings.TrimSpace(req.Prompt)
	c.length("prompt", prompt, 5, 2000, "Prompt must be between 5 and 2000 characters")
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		c.fail("sessionId", "Valid session ID is required", req.SessionID)
	}
	return sessionsvc.GenerateInput{SessionID: sessionID, Prompt: prompt, Model: strings.TrimSpace(req.Model)}, c.err()
}

func prepareRefine(req refineRequest) (sessionsvc.RefineInput, error) {
	var c checker
	prompt := strings.TrimSpace(req.Prompt)
	c.length("prompt", prompt, 5, 1000, "Refinement prompt must be between 5 and 1000 characters")
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		c.fail("sessionId", "Valid session ID is required", req.SessionID)
	}
	version := 0
	if req.ComponentVersion != nil {
		version = *req.ComponentVersion
		if version < 1 {
			c.fail("componentVersion", "Component version must be a positive integer", version)
		}
	}
	return sessionsvc.RefineInput{SessionID: sessionID, Prompt: prompt, Version: version, Model: strings.TrimSpace(req.Model)}, c.err()
}

func prepareChat(req chatRequest) (sessionsvc.ChatInput, error) {
	var c checker
	message := strings.TrimSpace(req.Message)
	c.length("message", message, 1, 1000, "Message must be between 1 and 1000 characters")
	return sessionsvc.ChatInput{SessionID: strings.TrimSpace(req.SessionID), Message: message, Model: strings.TrimSpace(req.Model)}, c.err()
}

// ---- sessions ----

type createSessionRequest struct {
	Title       *string                   `json:"title"`
	Description string                    `json:"description"`
	Tags        []string                  `json:"tags"`
	Settings    *sessionsvc.SettingsPatch `json:"settings"`
}

type updateSessionRequest struct {
	Title       *string                   `json:"title"`
	Description *string                   `json:"description"`
	Tags        []string                  `json:"tags"`
	Status      *string                   `json:"status"`
	IsPublic    *bool                     `json:"isPublic"`
	Settings    *sessionsvc.SettingsPatch `json:"settings"`
}

func (c *checker) tags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		c.length("tags", t, 1, 30, "Each tag must be between 1 and 30 characters")
		out = append(out, t)
	}
	return out
}

func prepareCreateSession(req createSessionRequest) (sessionsvc.CreateInput, error) {
	var c checker
	in := sessionsvc.CreateInput{Settings: req.Settings}
	if req.Title != nil {
		in.Title = strings.TrimSpace(*req.Title)
		c.length("title", in.Title, 1, 100, "Title must be between 1 and 100 characters")
	}
	in.Description = strings.TrimSpace(req.Description)
	c.length("description", in.Description, 0, 500, "Description must not exceed 500 characters")
	in.Tags = c.tags(req.Tags)
	return in, c.err()
}

func prepareUpdateSession(req updateSessionRequest) (sessionsvc.UpdateInput, error) {
	var c checker
	in := sessionsvc.UpdateInput{IsPublic: req.IsPublic, Settings: req.Settings}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		c.length("title", title, 1, 100, "Title must be between 1 and 100 characters")
		in.Title = &title
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		c.length("description", desc, 0, 500, "Description must not exceed 500 characters")
		in.Description = &desc
	}
	in.Tags = c.tags(req.Tags)
	if req.Status != nil {
		status := entity.SessionStatus(strings.TrimSpace(*req.Status))
		if status != entity.SessionActive && status != entity.SessionArchived {
			c.fail("status", "Status must be active or archived", *req.Status)
		}
		in.Status = &status
	}
	return in, c.err()
}

func prepareListSessions(r *http.Request) (sessionsvc.ListInput, error) {
	var c checker
	q := r.URL.Query()
	in := sessionsvc.ListInput{Page: sessionsvc.DefaultPage, Limit: sessionsvc.DefaultLimit}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.fail("page", "Page must be a positive integer", raw)
		}
		in.Page = n
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.fail("limit", "Limit must be between 1 and 100", raw)
		}
		in.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		in.Status = entity.SessionStatus(raw)
		if !in.Status.Valid() {
			c.fail("status", "Status must be active, archived, or deleted", raw)
		}
	}
	in.Search = strings.TrimSpace(q.Get("search"))
	c.length("search", in.Search, 0, 100, "Search term must not exceed 100 characters")
	return in, c.err()
}

// ---- components ----

type manualEditRequest struct {
	Code       string         `json:"jsx"`
	Stylesheet *string        `json:"css"`
	Props      map[string]any `json:"props"`
}

func prepareManualEdit(req manualEditRequest) (sessionsvc.ManualEdit, error) {
	var c checker
	code := strings.TrimSpace(req.Code)
	c.length("jsx", code, 10, 0, "JSX code is required and must be at least 10 characters")
	return sessionsvc.ManualEdit{Code: code, Stylesheet: req.Stylesheet, Props: req.Props}, c.err()
}
