package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uigen/internal/gateway/apperr"
	llmclient "uigen/internal/llm/client"
)

func TestErrorResponseMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation([]apperr.FieldError{{Field: "prompt", Message: "bad"}}), 400, "Validation failed"},
		{"unauthorized", apperr.Unauthorized("Access token required"), 401, "Access token required"},
		{"not found", fmt.Errorf("wrap: %w", apperr.NotFound("Session not found")), 404, "Session not found"},
		{"conflict", apperr.Conflict("retry"), 409, "retry"},
		{"invalid key", llmclient.Classify(errors.New("API key not valid")), 500, "Invalid Google API key"},
		{"quota", llmclient.Classify(errors.New("quota exhausted")), 500, "Google API quota exceeded"},
		{"provider", fmt.Errorf("generate component: %w", llmclient.Classify(errors.New("backend unavailable"))), 500, "AI Service Error: backend unavailable"},
		{"other", errors.New("disk full"), 500, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorResponse(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.message, body.Message)
			assert.False(t, body.Success)
		})
	}
}

func TestWriteErrorIncludesFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.Validation([]apperr.FieldError{{Field: "prompt", Message: "Prompt must be between 5 and 2000 characters", Value: "hey"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Validation failed","errors":[{"field":"prompt","msg":"Prompt must be between 5 and 2000 characters","value":"hey"}]}`, rec.Body.String())
}

func TestPrepareGenerate(t *testing.T) {
	in, err := prepareGenerate(generateRequest{Prompt: "  Build a login form ", SessionID: " s1 "})
	require.NoError(t, err)
	assert.Equal(t, "Build a login form", in.Prompt)
	assert.Equal(t, "s1", in.SessionID)

	_, err = prepareGenerate(generateRequest{Prompt: "hey"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	fields := apperr.Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "prompt", fields[0].Field)
	assert.Equal(t, "sessionId", fields[1].Field)

	_, err = prepareGenerate(generateRequest{Prompt: strings.Repeat("a", 2001), SessionID: "s1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPrepareRefine(t *testing.T) {
	zero := 0
	_, err := prepareRefine(refineRequest{Prompt: "make it blue", SessionID: "s1", ComponentVersion: &zero})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Component version must be a positive integer", apperr.Fields(err)[0].Message)

	two := 2
	in, err := prepareRefine(refineRequest{Prompt: "make it blue", SessionID: "s1", ComponentVersion: &two})
	require.NoError(t, err)
	assert.Equal(t, 2, in.Version)

	in, err = prepareRefine(refineRequest{Prompt: "make it blue", SessionID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, in.Version)

	_, err = prepareRefine(refineRequest{Prompt: strings.Repeat("a", 1001), SessionID: "s1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPrepareChatAndManualEdit(t *testing.T) {
	_, err := prepareChat(chatRequest{Message: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	in, err := prepareChat(chatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Empty(t, in.SessionID)

	_, err = prepareManualEdit(manualEditRequest{Code: "<p/>"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "JSX code is required and must be at least 10 characters", apperr.Fields(err)[0].Message)
}

func TestPrepareSessions(t *testing.T) {
	empty := ""
	_, err := prepareCreateSession(createSessionRequest{Title: &empty, Tags: []string{strings.Repeat("t", 31)}})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, apperr.Fields(err), 2)

	in, err := prepareCreateSession(createSessionRequest{Tags: []string{" ui "}})
	require.NoError(t, err)
	assert.Empty(t, in.Title)
	assert.Equal(t, []string{"ui"}, in.Tags)

	deleted := "deleted"
	_, err = prepareUpdateSession(updateSessionRequest{Status: &deleted})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Status must be active or archived", apperr.Fields(err)[0].Message)
}

func TestPrepareListSessions(t *testing.T) {
	in, err := prepareListSessions(httptest.NewRequest(http.MethodGet, "/api/sessions?page=2&limit=5&search=nav", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, in.Page)
	assert.Equal(t, 5, in.Limit)
	assert.Equal(t, "nav", in.Search)

	_, err = prepareListSessions(httptest.NewRequest(http.MethodGet, "/api/sessions?page=0&limit=101&status=gone", nil))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, apperr.Fields(err), 3)
}

func TestDecodeJSONTypeErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"Build a card","sessionId":"s1","model":7}`))
	var body generateRequest
	err := decodeJSON(httptest.NewRecorder(), req, &body)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Model must be a string", apperr.Fields(err)[0].Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":`))
	err = decodeJSON(httptest.NewRecorder(), req, &body)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "body", apperr.Fields(err)[0].Field)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, decodeJSON(httptest.NewRecorder(), req, &body))
}

func TestParseVersion(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("version", "current")
	n, err := parseVersion(req, true)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = parseVersion(req, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	req.SetPathValue("version", "3")
	n, err = parseVersion(req, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
