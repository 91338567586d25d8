package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uigen/internal/componentgen"
	"uigen/internal/gateway/apperr"
	"uigen/internal/gateway/entity"
	bundlerepo "uigen/internal/gateway/repository/bundle"
	sessionrepo "uigen/internal/gateway/repository/session"
	"uigen/internal/gateway/service/sessionevent"
	llmclient "uigen/internal/llm/client"
)

const alice entity.UserID = "alice"

type fixture struct {
	svc    *Service
	store  *sessionrepo.MemoryStore
	llm    *llmclient.FakeClient
	events *sessionevent.Broker
}

func newFixture(t *testing.T, mode EditMode) *fixture {
	t.Helper()
	fake := llmclient.NewFakeClient()
	store := sessionrepo.NewMemoryStore()
	events := sessionevent.NewBroker()
	gen := componentgen.New(fake, componentgen.Config{})
	svc := New(store, gen, bundlerepo.NewMemoryStore(), events, Config{ManualEditMode: mode})
	return &fixture{svc: svc, store: store, llm: fake, events: events}
}

func (f *fixture) session(t *testing.T) *entity.Session {
	t.Helper()
	s, err := f.svc.Create(context.Background(), alice, CreateInput{Title: "Login", Tags: []string{"forms"}})
	require.NoError(t, err)
	return s
}

func (f *fixture) reload(t *testing.T, id string) *entity.Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func assertStatistics(t *testing.T, s *entity.Session) {
	t.Helper()
	total := 0
	for _, m := range s.Messages {
		total += m.Metadata.Tokens
	}
	assert.Equal(t, len(s.Messages), s.Statistics.TotalMessages)
	assert.Equal(t, total, s.Statistics.TotalTokens)
}

func assertVersionChain(t *testing.T, s *entity.Session) {
	t.Helper()
	for i, v := range s.Versions {
		assert.Equal(t, i+1, v.Version)
	}
	if n := len(s.Versions); n > 0 {
		assert.Equal(t, s.Versions[n-1].Version, s.CurrentVersion)
	}
}

func TestGenerateOnEmptySessionCreatesVersionOne(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)

	out, err := f.svc.Generate(ctx, alice, GenerateInput{SessionID: sess.ID, Prompt: "Build a login form"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Version)
	assert.Equal(t, sess.ID, out.SessionID)
	assert.Equal(t, "FakeCard", out.Component.Name)

	got := f.reload(t, sess.ID)
	assert.Equal(t, 1, got.CurrentVersion)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, entity.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "Build a login form", got.Messages[0].Content)
	assert.Equal(t, entity.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "I've generated a FakeCard component for you. A clickable card rendered offline.", got.Messages[1].Content)
	assert.Positive(t, got.Messages[1].Metadata.Tokens)
	assert.Equal(t, "Build a login form", got.Versions[0].Prompt)
	assert.Equal(t, llmclient.DefaultModel, got.Versions[0].Metadata.Model)
	assertStatistics(t, got)

	req := f.llm.Requests()[0]
	assert.Equal(t, got.Settings.Model, req.Model)
}

func seedVersions(t *testing.T, f *fixture, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.svc.Generate(context.Background(), alice, GenerateInput{SessionID: id, Prompt: fmt.Sprintf("Build widget %d", i+1)})
		require.NoError(t, err)
	}
}

func TestRefineDefaultsToCurrentVersion(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 3)
	require.NoError(t, f.svc.SetCurrent(ctx, alice, sess.ID, 2))
	before := f.reload(t, sess.ID)
	v2, _ := before.FindVersion(2)

	out, err := f.svc.Refine(ctx, alice, RefineInput{SessionID: sess.ID, Prompt: "make the label bold"})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Version)

	got := f.reload(t, sess.ID)
	require.Len(t, got.Versions, 4)
	assert.Equal(t, 4, got.CurrentVersion)
	assert.Equal(t, "Refinement of v2: make the label bold", got.Versions[3].Prompt)
	assert.Equal(t, v2, got.Versions[1])

	user := got.Messages[len(got.Messages)-2]
	assert.Equal(t, entity.ActionRefine, user.Metadata.Action)
	assert.Equal(t, 2, user.Metadata.TargetVersion)
	assert.Equal(t, "I've refined the component based on your request. Made the label bold.", got.Messages[len(got.Messages)-1].Content)

	reqs := f.llm.Requests()
	assert.Contains(t, reqs[len(reqs)-1].Prompt, "JSX: "+v2.Code)
	assertStatistics(t, got)
	assertVersionChain(t, got)
}

func TestRefineUnknownVersionChangesNothing(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 1)
	before := f.reload(t, sess.ID)
	calls := len(f.llm.Requests())

	_, err := f.svc.Refine(ctx, alice, RefineInput{SessionID: sess.ID, Prompt: "make it blue", Version: 9})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Component version not found", apperr.Message(err, ""))

	after := f.reload(t, sess.ID)
	assert.Len(t, after.Messages, len(before.Messages))
	assert.Len(t, after.Versions, 1)
	assert.Len(t, f.llm.Requests(), calls)

	empty := f.session(t)
	_, err = f.svc.Refine(ctx, alice, RefineInput{SessionID: empty.ID, Prompt: "make it blue"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVersionsIncreaseAcrossOperationKinds(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)

	seedVersions(t, f, sess.ID, 1)
	_, err := f.svc.Refine(ctx, alice, RefineInput{SessionID: sess.ID, Prompt: "tweak the spacing"})
	require.NoError(t, err)
	dup, err := f.svc.DuplicateVersion(ctx, alice, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, dup.Version)
	assert.Equal(t, "Duplicate of v1", dup.Prompt)
	assert.Equal(t, 1, dup.Metadata.DuplicatedFrom)

	edited, err := f.svc.ManualEdit(ctx, alice, sess.ID, 2, ManualEdit{Code: "const Edited = () => <p/>;"})
	require.NoError(t, err)
	assert.Equal(t, 4, edited.Version)
	assert.Equal(t, "Manual edit of v2", edited.Prompt)
	_, err = f.svc.Generate(ctx, alice, GenerateInput{SessionID: sess.ID, Prompt: "Another card"})
	require.NoError(t, err)

	got := f.reload(t, sess.ID)
	require.Len(t, got.Versions, 5)
	assertVersionChain(t, got)
	assertStatistics(t, got)

	dupMsg := got.Messages[4]
	assert.Equal(t, "Duplicated component version 1 as version 3", dupMsg.Content)
	assert.Equal(t, entity.ActionDuplicate, dupMsg.Metadata.Action)
	assert.Equal(t, 1, dupMsg.Metadata.SourceVersion)
	assert.Equal(t, 3, dupMsg.Metadata.NewVersion)
}

func TestManualEditInPlace(t *testing.T) {
	f := newFixture(t, EditInPlace)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 2)

	css := ".edited{}"
	v, err := f.svc.ManualEdit(ctx, alice, sess.ID, 1, ManualEdit{
		Code:       "const Edited = () => <p/>;",
		Stylesheet: &css,
		Props:      map[string]any{"label": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)

	got := f.reload(t, sess.ID)
	require.Len(t, got.Versions, 2)
	assert.Equal(t, 2, got.CurrentVersion)
	assert.Equal(t, "const Edited = () => <p/>;", got.Versions[0].Code)
	assert.Equal(t, css, got.Versions[0].Stylesheet)
	assert.Equal(t, map[string]any{"label": "x"}, got.Versions[0].Props)

	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, "Manually updated component version 1", last.Content)
	assert.Equal(t, entity.ActionManualEdit, last.Metadata.Action)
	assert.Equal(t, 1, last.Metadata.TargetVersion)
	assertStatistics(t, got)
}

func TestManualEditAsNewVersionKeepsOriginal(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 1)
	orig := f.reload(t, sess.ID).Versions[0]

	v, err := f.svc.ManualEdit(ctx, alice, sess.ID, 1, ManualEdit{Code: "const Edited = () => <p/>;"})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, orig.Stylesheet, v.Stylesheet)
	assert.Equal(t, 1, v.Metadata.EditedFrom)

	got := f.reload(t, sess.ID)
	assert.Equal(t, orig, got.Versions[0])
	assert.Equal(t, 2, got.CurrentVersion)
	last := got.Messages[len(got.Messages)-1]
	assert.Equal(t, "Manually updated component version 1 as version 2", last.Content)
	assert.Equal(t, 2, last.Metadata.NewVersion)
}

func TestOwnershipAndStatusAreIndistinguishable(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)

	_, err := f.svc.Get(ctx, "mallory", sess.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Generate(ctx, "mallory", GenerateInput{SessionID: sess.ID, Prompt: "Build a login form"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Session not found or access denied", apperr.Message(err, ""))
	_, err = f.svc.Get(ctx, alice, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	archived := entity.SessionArchived
	_, err = f.svc.Update(ctx, alice, sess.ID, UpdateInput{Status: &archived})
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, alice, GenerateInput{SessionID: sess.ID, Prompt: "Build a login form"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Get(ctx, alice, sess.ID)
	assert.NoError(t, err)
	assert.Empty(t, f.llm.Requests())

	require.NoError(t, f.svc.Delete(ctx, alice, sess.ID))
	_, err = f.svc.Get(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	err = f.svc.Delete(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	active := entity.SessionActive
	_, err = f.svc.Update(ctx, alice, sess.ID, UpdateInput{Status: &active})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateRejectsDeletedStatus(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	sess := f.session(t)
	deleted := entity.SessionDeleted
	_, err := f.svc.Update(context.Background(), alice, sess.ID, UpdateInput{Status: &deleted})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "status", apperr.Fields(err)[0].Field)
}

func TestUpdatePatchesFields(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	sess := f.session(t)
	title := "Checkout"
	public := true
	model := "gemini-1.5-pro"
	got, err := f.svc.Update(context.Background(), alice, sess.ID, UpdateInput{
		Title:    &title,
		IsPublic: &public,
		Settings: &SettingsPatch{Model: &model},
	})
	require.NoError(t, err)
	assert.Equal(t, "Checkout", got.Title)
	assert.True(t, got.IsPublic)
	assert.Equal(t, model, got.Settings.Model)
	assert.True(t, got.Settings.AutoSave)
	assert.Equal(t, 4096, got.Settings.MaxTokens)
	assert.Equal(t, []string{"forms"}, got.Tags)
}

func TestChatWithAndWithoutSession(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)

	out, err := f.svc.Chat(ctx, alice, ChatInput{Message: "what is a hook?", SessionID: "unknown"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Message)
	assert.Empty(t, out.SessionID)

	out, err = f.svc.Chat(ctx, alice, ChatInput{Message: "what is a hook?", SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, out.SessionID)

	got := f.reload(t, sess.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "what is a hook?", got.Messages[0].Content)
	assert.Equal(t, out.Message, got.Messages[1].Content)
	assert.Empty(t, got.Versions)
	assertStatistics(t, got)

	reqs := f.llm.Requests()
	assert.Equal(t, componentgen.DefaultChatMaxTokens, reqs[len(reqs)-1].MaxOutputTokens)
}

func TestProviderFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	f.llm.Respond = func(llmclient.Request) (string, error) { return "", errors.New("API key not valid") }
	sess := f.session(t)

	_, err := f.svc.Generate(context.Background(), alice, GenerateInput{SessionID: sess.ID, Prompt: "Build a login form"})
	require.ErrorIs(t, err, llmclient.ErrInvalidCredential)
	got := f.reload(t, sess.ID)
	assert.Empty(t, got.Messages)
	assert.Empty(t, got.Versions)
}

func TestListPaginationAndSearch(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, alice, CreateInput{Title: fmt.Sprintf("Card %d", i), Tags: []string{"ui"}})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, alice, CreateInput{Title: "Navbar", Description: "top navigation"})
	require.NoError(t, err)

	out, err := f.svc.List(ctx, alice, ListInput{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, out.Sessions, 2)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 2, TotalSessions: 6, HasNext: false, HasPrev: true}, out.Pagination)

	out, err = f.svc.List(ctx, alice, ListInput{Search: "NAVIGATION"})
	require.NoError(t, err)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, "Navbar", out.Sessions[0].Title)

	out, err = f.svc.List(ctx, "bob", ListInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Sessions)
	assert.Equal(t, 0, out.Pagination.TotalPages)
}

func TestDuplicateSessionAndExport(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 2)

	dup, err := f.svc.DuplicateSession(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, dup.ID)
	assert.Equal(t, "Login (Copy)", dup.Title)
	assert.Len(t, dup.Versions, 2)
	assert.Equal(t, 2, dup.CurrentVersion)
	assert.Len(t, dup.Messages, 4)
	assert.Equal(t, entity.SessionActive, dup.Status)

	exp, err := f.svc.Export(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Login", exp.SessionInfo.Title)
	assert.Equal(t, 4, exp.SessionInfo.Statistics.TotalMessages)
	assert.Len(t, exp.ChatHistory, 4)
	assert.Len(t, exp.Components, 2)
}

func TestVersionQueries(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)

	_, err := f.svc.ListVersions(ctx, alice, sess.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "No components found in this session. Generate a component first.", apperr.Message(err, ""))
	_, err = f.svc.GetCurrent(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	seedVersions(t, f, sess.ID, 2)
	vs, err := f.svc.ListVersions(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Len(t, vs.Versions, 2)
	assert.Equal(t, 2, vs.CurrentVersion)
	assert.Equal(t, "Login", vs.SessionTitle)
	assert.Equal(t, "Build widget 1", vs.Versions[0].Prompt)

	cur, err := f.svc.GetCurrent(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)

	err = f.svc.SetCurrent(ctx, alice, sess.ID, 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.GetVersion(ctx, alice, sess.ID, 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDownloadBundle(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 1)

	b, err := f.svc.Download(ctx, alice, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "Login-v1.zip", b.FileName)

	zr, err := zip.NewReader(bytes.NewReader(b.Content), int64(len(b.Content)))
	require.NoError(t, err)
	files := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[zf.Name] = string(body)
	}
	require.Contains(t, files, "FakeCard.jsx")
	require.Contains(t, files, "FakeCard.css")
	require.Contains(t, files, "README.md")

	var manifest packageManifest
	require.NoError(t, json.Unmarshal([]byte(files["package.json"]), &manifest))
	assert.Equal(t, "fakecard-component", manifest.Name)
	assert.Equal(t, "Generated React component - Login", manifest.Description)
	assert.Equal(t, "FakeCard.jsx", manifest.Main)
	assert.Equal(t, "alice", manifest.Author)

	assert.Contains(t, files["README.md"], "# FakeCard Component")
	assert.Contains(t, files["README.md"], `<FakeCard onClick={"function"} title={"Hello"} />`)
	assert.Contains(t, files["README.md"], "- `title`: string - Example: `\"Hello\"`")
	assert.Contains(t, files["README.md"], "- Prompt: Build widget 1")

	again, err := f.svc.Download(ctx, alice, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, b.Content, again.Content)

	_, err = f.svc.Download(ctx, alice, sess.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDownloadURLFallsBackToGatewayRoute(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx := context.Background()
	sess := f.session(t)
	seedVersions(t, f, sess.ID, 1)

	link, err := f.svc.DownloadURL(ctx, alice, sess.ID, 0)
	require.NoError(t, err)
	assert.False(t, link.Presigned)
	assert.Equal(t, "/api/components/"+sess.ID+"/1/download", link.URL)
	assert.Equal(t, "Login-v1.zip", link.FileName)
}

func TestWatchReceivesVersionEvents(t *testing.T) {
	f := newFixture(t, EditAsNewVersion)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := f.session(t)

	ch, err := f.svc.Watch(ctx, alice, sess.ID)
	require.NoError(t, err)
	_, err = f.svc.Watch(ctx, "mallory", sess.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	seedVersions(t, f, sess.ID, 1)
	select {
	case evt := <-ch:
		assert.Equal(t, sessionevent.KindVersionAdded, evt.Kind)
		assert.Equal(t, 1, evt.Version)
		assert.Equal(t, 1, evt.CurrentVersion)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestParseEditMode(t *testing.T) {
	m, err := ParseEditMode("")
	require.NoError(t, err)
	assert.Equal(t, EditAsNewVersion, m)
	m, err = ParseEditMode(" IN_PLACE ")
	require.NoError(t, err)
	assert.Equal(t, EditInPlace, m)
	_, err = ParseEditMode("sideways")
	assert.Error(t, err)
}
