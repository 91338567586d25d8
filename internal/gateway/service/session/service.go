// Package session implements session, version and generation use cases on top
// of a session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"uigen/internal/componentgen"
	"uigen/internal/gateway/apperr"
	"uigen/internal/gateway/entity"
	bundlerepo "uigen/internal/gateway/repository/bundle"
	sessionrepo "uigen/internal/gateway/repository/session"
	"uigen/internal/gateway/service/sessionevent"
	llmclient "uigen/internal/llm/client"
)

// Generator produces component artifacts and chat replies.
type Generator interface {
	Generate(ctx context.Context, in componentgen.GenerateInput) (*componentgen.Result, error)
	Refine(ctx context.Context, in componentgen.RefineInput) (*componentgen.Result, error)
	Chat(ctx context.Context, in componentgen.ChatInput) (*componentgen.ChatResult, error)
	Models() []llmclient.ModelInfo
	DefaultModel() string
}

type Config struct {
	ManualEditMode   EditMode
	DefaultMaxTokens int
}

type Service struct {
	store   sessionrepo.Store
	gen     Generator
	bundles bundlerepo.Store
	events  *sessionevent.Broker
	cfg     Config
	now     func() time.Time
	newID   func() string
}

// New wires the service. bundles and events may be nil.
func New(store sessionrepo.Store, gen Generator, bundles bundlerepo.Store, events *sessionevent.Broker, cfg Config) *Service {
	if cfg.ManualEditMode == "" {
		cfg.ManualEditMode = EditAsNewVersion
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = componentgen.DefaultMaxTokens
	}
	return &Service{
		store:   store,
		gen:     gen,
		bundles: bundles,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
}

// access describes what a use case needs from the session it touches.
type access struct {
	active   bool
	notFound string
}

var (
	readAccess  = access{notFound: msgSessionNotFound}
	writeAccess = access{active: true, notFound: msgSessionNotFound}
	aiAccess    = access{active: true, notFound: msgSessionNoAccess}
)

// check hides sessions that are missing, owned by someone else, deleted, or
// not active when the use case mutates them. All cases look the same to the
// caller.
func (a access) check(s *entity.Session, user entity.UserID) error {
	if s == nil || !s.OwnedBy(user) || s.Status == entity.SessionDeleted {
		return apperr.NotFound(a.notFound)
	}
	if a.active && s.Status != entity.SessionActive {
		return apperr.NotFound(a.notFound)
	}
	return nil
}

func (s *Service) load(ctx context.Context, user entity.UserID, id string, a access) (*entity.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrNotFound) {
			return nil, apperr.NotFound(a.notFound)
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if err := a.check(sess, user); err != nil {
		return nil, err
	}
	return sess, nil
}

// mutate runs fn inside the store's atomic update after re-checking access.
func (s *Service) mutate(ctx context.Context, user entity.UserID, id string, a access, fn func(*entity.Session) error) (*entity.Session, error) {
	updated, err := s.store.Update(ctx, id, func(sess *entity.Session) error {
		if err := a.check(sess, user); err != nil {
			return err
		}
		return fn(sess)
	})
	if err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrNotFound):
			return nil, apperr.NotFound(a.notFound)
		case errors.Is(err, sessionrepo.ErrConflict):
			return nil, apperr.Conflict(msgRevisionConflict)
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	return updated, nil
}

func (s *Service) publish(kind sessionevent.Kind, sess *entity.Session, version int) {
	if s.events == nil || sess == nil {
		return
	}
	s.events.Publish(sessionevent.Event{
		Kind:           kind,
		SessionID:      sess.ID,
		Version:        version,
		CurrentVersion: sess.CurrentVersion,
		Revision:       sess.Revision,
		At:             s.now(),
	})
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func pickModel(requested string, sess *entity.Session) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if sess != nil {
		return strings.TrimSpace(sess.Settings.Model)
	}
	return ""
}

// ---- generation ----

type GenerateInput struct {
	SessionID string
	Prompt    string
	Model     string
}

type RefineInput struct {
	SessionID string
	Prompt    string
	// Version is the version to refine; zero means the current version.
	Version int
	Model   string
}

type GenerateOutput struct {
	Component componentgen.Artifact `json:"component"`
	Version   int                   `json:"version"`
	SessionID string                `json:"sessionId"`
}

type ChatInput struct {
	SessionID string
	Message   string
	Model     string
}

type ChatOutput struct {
	Message   string                `json:"message"`
	SessionID string                `json:"sessionId,omitempty"`
	Metadata  componentgen.Metadata `json:"-"`
}

type ModelsOutput struct {
	Models  []llmclient.ModelInfo `json:"models"`
	Default string                `json:"default"`
}

func (s *Service) Generate(ctx context.Context, user entity.UserID, in GenerateInput) (*GenerateOutput, error) {
	sess, err := s.load(ctx, user, in.SessionID, aiAccess)
	if err != nil {
		return nil, err
	}
	res, err := s.gen.Generate(ctx, componentgen.GenerateInput{
		Prompt:  in.Prompt,
		Model:   pickModel(in.Model, sess),
		Prior:   lastN(sess.Versions, componentgen.PriorArtifactWindow),
		History: lastN(sess.Messages, componentgen.GenerateContextWindow),
	})
	if err != nil {
		return nil, err
	}

	var v entity.ArtifactVersion
	updated, err := s.mutate(ctx, user, sess.ID, aiAccess, func(cur *entity.Session) error {
		v = AppendGeneration(cur, in.Prompt, res, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionevent.KindVersionAdded, updated, v.Version)
	return &GenerateOutput{Component: res.Data, Version: v.Version, SessionID: updated.ID}, nil
}

func (s *Service) Refine(ctx context.Context, user entity.UserID, in RefineInput) (*GenerateOutput, error) {
	sess, err := s.load(ctx, user, in.SessionID, aiAccess)
	if err != nil {
		return nil, err
	}
	target := in.Version
	if target == 0 {
		target = sess.CurrentVersion
	}
	orig, ok := sess.FindVersion(target)
	if !ok {
		return nil, versionNotFound()
	}
	res, err := s.gen.Refine(ctx, componentgen.RefineInput{
		Prompt:   in.Prompt,
		Model:    pickModel(in.Model, sess),
		Original: componentgen.ArtifactOf(orig),
	})
	if err != nil {
		return nil, err
	}
	if !res.Structured {
		log.Printf("refine session=%s v%d: model reply had no JSON, kept original payload", sess.ID, target)
	}

	var v entity.ArtifactVersion
	updated, err := s.mutate(ctx, user, sess.ID, aiAccess, func(cur *entity.Session) error {
		var err error
		v, err = AppendRefinement(cur, target, in.Prompt, res, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionevent.KindVersionAdded, updated, v.Version)
	return &GenerateOutput{Component: res.Data, Version: v.Version, SessionID: updated.ID}, nil
}

// Chat answers a free-form message. When the session is unknown the exchange
// is answered without history and not recorded.
func (s *Service) Chat(ctx context.Context, user entity.UserID, in ChatInput) (*ChatOutput, error) {
	var sess *entity.Session
	if id := strings.TrimSpace(in.SessionID); id != "" {
		loaded, err := s.load(ctx, user, id, aiAccess)
		switch {
		case err == nil:
			sess = loaded
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return nil, err
		}
	}

	chatIn := componentgen.ChatInput{Message: in.Message, Model: pickModel(in.Model, sess)}
	if sess != nil {
		chatIn.History = lastN(sess.Messages, componentgen.ChatContextWindow)
	}
	res, err := s.gen.Chat(ctx, chatIn)
	if err != nil {
		return nil, err
	}
	out := &ChatOutput{Message: res.Message, Metadata: res.Metadata}
	if sess == nil {
		return out, nil
	}
	updated, err := s.mutate(ctx, user, sess.ID, aiAccess, func(cur *entity.Session) error {
		AppendChat(cur, in.Message, res, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionevent.KindMessages, updated, 0)
	out.SessionID = updated.ID
	return out, nil
}

func (s *Service) Models() ModelsOutput {
	return ModelsOutput{Models: s.gen.Models(), Default: s.gen.DefaultModel()}
}

// ---- sessions ----

type SettingsPatch struct {
	AutoSave  *bool   `json:"autoSave"`
	Model     *string `json:"model"`
	MaxTokens *int    `json:"maxTokens"`
}

type CreateInput struct {
	Title       string
	Description string
	Tags        []string
	Settings    *SettingsPatch
}

type UpdateInput struct {
	Title       *string
	Description *string
	Tags        []string
	Status      *entity.SessionStatus
	IsPublic    *bool
	Settings    *SettingsPatch
}

type ListInput struct {
	Page   int
	Limit  int
	Status entity.SessionStatus
	Search string
}

type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalSessions int  `json:"totalSessions"`
	HasNext       bool `json:"hasNext"`
	HasPrev       bool `json:"hasPrev"`
}

type ListOutput struct {
	Sessions   []entity.SessionSummary `json:"sessions"`
	Pagination Pagination              `json:"pagination"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

func (p *SettingsPatch) apply(dst *entity.Settings) {
	if p == nil {
		return
	}
	if p.AutoSave != nil {
		dst.AutoSave = *p.AutoSave
	}
	if p.Model != nil && strings.TrimSpace(*p.Model) != "" {
		dst.Model = strings.TrimSpace(*p.Model)
	}
	if p.MaxTokens != nil && *p.MaxTokens > 0 {
		dst.MaxTokens = *p.MaxTokens
	}
}

func (s *Service) Create(ctx context.Context, user entity.UserID, in CreateInput) (*entity.Session, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = entity.DefaultSessionTitle
	}
	sess := &entity.Session{
		ID:          s.newID(),
		UserID:      user,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Tags:        append([]string{}, in.Tags...),
		Status:      entity.SessionActive,
		Settings: entity.Settings{
			AutoSave:  true,
			Model:     s.gen.DefaultModel(),
			MaxTokens: s.cfg.DefaultMaxTokens,
		},
		Messages: []entity.Message{},
		Versions: []entity.ArtifactVersion{},
	}
	in.Settings.apply(&sess.Settings)
	created, err := s.store.Create(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, user entity.UserID, id string) (*entity.Session, error) {
	return s.load(ctx, user, id, readAccess)
}

func (s *Service) List(ctx context.Context, user entity.UserID, in ListInput) (*ListOutput, error) {
	page := in.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := in.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	status := in.Status
	if status == "" {
		status = entity.SessionActive
	}
	res, err := s.store.List(ctx, sessionrepo.ListFilter{
		UserID: user,
		Status: status,
		Search: in.Search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := &ListOutput{Sessions: make([]entity.SessionSummary, 0, len(res.Sessions))}
	for _, sess := range res.Sessions {
		out.Sessions = append(out.Sessions, sess.Summary())
	}
	totalPages := int(math.Ceil(float64(res.Total) / float64(limit)))
	out.Pagination = Pagination{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalSessions: res.Total,
		HasNext:       page < totalPages,
		HasPrev:       page > 1,
	}
	return out, nil
}

// Update edits session metadata. Archived sessions may be updated so they
// can be reactivated.
func (s *Service) Update(ctx context.Context, user entity.UserID, id string, in UpdateInput) (*entity.Session, error) {
	updated, err := s.mutate(ctx, user, id, readAccess, func(cur *entity.Session) error {
		if in.Title != nil {
			cur.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			cur.Description = strings.TrimSpace(*in.Description)
		}
		if in.Tags != nil {
			cur.Tags = append([]string{}, in.Tags...)
		}
		if in.Status != nil {
			if *in.Status != entity.SessionActive && *in.Status != entity.SessionArchived {
				return apperr.Validation([]apperr.FieldError{{Field: "status", Message: "Status must be active or archived", Value: *in.Status}})
			}
			cur.Status = *in.Status
		}
		if in.IsPublic != nil {
			cur.IsPublic = *in.IsPublic
		}
		in.Settings.apply(&cur.Settings)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionevent.KindSessionUpdated, updated, 0)
	return updated, nil
}

// Delete is a soft delete; deleted sessions are invisible to every other use
// case.
func (s *Service) Delete(ctx context.Context, user entity.UserID, id string) error {
	updated, err := s.mutate(ctx, user, id, readAccess, func(cur *entity.Session) error {
		cur.Status = entity.SessionDeleted
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(sessionevent.KindSessionDeleted, updated, 0)
	return nil
}

func (s *Service) DuplicateSession(ctx context.Context, user entity.UserID, id string) (*entity.Session, error) {
	orig, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return nil, err
	}
	dup := orig.Clone()
	dup.ID = s.newID()
	dup.Title = orig.Title + " (Copy)"
	dup.Status = entity.SessionActive
	dup.IsPublic = false
	dup.Revision = 0
	dup.CreatedAt = time.Time{}
	created, err := s.store.Create(ctx, dup)
	if err != nil {
		return nil, fmt.Errorf("duplicate session: %w", err)
	}
	return created, nil
}

type SessionInfo struct {
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt" yaml:"updatedAt"`
	Tags        []string          `json:"tags" yaml:"tags"`
	Statistics  entity.Statistics `json:"statistics" yaml:"statistics"`
}

type ExportData struct {
	SessionInfo SessionInfo              `json:"sessionInfo" yaml:"sessionInfo"`
	ChatHistory []entity.Message         `json:"chatHistory" yaml:"chatHistory"`
	Components  []entity.ArtifactVersion `json:"components" yaml:"components"`
	Settings    entity.Settings          `json:"settings" yaml:"settings"`
}

func (s *Service) Export(ctx context.Context, user entity.UserID, id string) (*ExportData, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return nil, err
	}
	return &ExportData{
		SessionInfo: SessionInfo{
			Title:       sess.Title,
			Description: sess.Description,
			CreatedAt:   sess.CreatedAt,
			UpdatedAt:   sess.UpdatedAt,
			Tags:        sess.Tags,
			Statistics:  sess.Statistics,
		},
		ChatHistory: sess.Messages,
		Components:  sess.Versions,
		Settings:    sess.Settings,
	}, nil
}

// ---- versions ----

type VersionSummary struct {
	Version   int                       `json:"version"`
	CreatedAt time.Time                 `json:"createdAt"`
	Prompt    string                    `json:"generationPrompt"`
	Metadata  entity.GenerationMetadata `json:"metadata"`
}

type VersionsOutput struct {
	Versions       []VersionSummary `json:"versions"`
	CurrentVersion int              `json:"currentVersion"`
	SessionTitle   string           `json:"sessionTitle"`
}

type DownloadLink struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Version  int    `json:"version"`
	// Presigned is false when URL points back at the gateway download route.
	Presigned bool `json:"presigned"`
}

func (s *Service) GetVersion(ctx context.Context, user entity.UserID, id string, n int) (entity.ArtifactVersion, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return entity.ArtifactVersion{}, err
	}
	v, ok := sess.FindVersion(n)
	if !ok {
		return entity.ArtifactVersion{}, versionNotFound()
	}
	return v, nil
}

func (s *Service) GetCurrent(ctx context.Context, user entity.UserID, id string) (entity.ArtifactVersion, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return entity.ArtifactVersion{}, err
	}
	v, ok := sess.FindVersion(sess.CurrentVersion)
	if !ok {
		return entity.ArtifactVersion{}, apperr.NotFound(msgNoCurrent)
	}
	return v, nil
}

func (s *Service) ListVersions(ctx context.Context, user entity.UserID, id string) (*VersionsOutput, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return nil, err
	}
	if len(sess.Versions) == 0 {
		return nil, apperr.NotFound(msgNoVersions)
	}
	out := &VersionsOutput{
		Versions:       make([]VersionSummary, 0, len(sess.Versions)),
		CurrentVersion: sess.CurrentVersion,
		SessionTitle:   sess.Title,
	}
	for _, v := range sess.Versions {
		out.Versions = append(out.Versions, VersionSummary{
			Version:   v.Version,
			CreatedAt: v.CreatedAt,
			Prompt:    v.Prompt,
			Metadata:  v.Metadata,
		})
	}
	return out, nil
}

func (s *Service) SetCurrent(ctx context.Context, user entity.UserID, id string, n int) error {
	updated, err := s.mutate(ctx, user, id, writeAccess, func(cur *entity.Session) error {
		return SetCurrentVersion(cur, n)
	})
	if err != nil {
		return err
	}
	s.publish(sessionevent.KindCurrentChanged, updated, n)
	return nil
}

func (s *Service) ManualEdit(ctx context.Context, user entity.UserID, id string, n int, edit ManualEdit) (entity.ArtifactVersion, error) {
	var v entity.ArtifactVersion
	updated, err := s.mutate(ctx, user, id, writeAccess, func(cur *entity.Session) error {
		var err error
		v, err = ApplyManualEdit(cur, n, edit, s.cfg.ManualEditMode, s.now())
		return err
	})
	if err != nil {
		return entity.ArtifactVersion{}, err
	}
	kind := sessionevent.KindVersionAdded
	if s.cfg.ManualEditMode == EditInPlace {
		kind = sessionevent.KindVersionEdited
	}
	s.publish(kind, updated, v.Version)
	return v, nil
}

func (s *Service) DuplicateVersion(ctx context.Context, user entity.UserID, id string, n int) (entity.ArtifactVersion, error) {
	var v entity.ArtifactVersion
	updated, err := s.mutate(ctx, user, id, writeAccess, func(cur *entity.Session) error {
		var err error
		v, err = DuplicateVersion(cur, n, s.now())
		return err
	})
	if err != nil {
		return entity.ArtifactVersion{}, err
	}
	s.publish(sessionevent.KindVersionAdded, updated, v.Version)
	return v, nil
}

// resolveRef maps a version reference (0 = current) to a stored version.
func resolveRef(sess *entity.Session, n int) (entity.ArtifactVersion, error) {
	if n == 0 {
		n = sess.CurrentVersion
	}
	v, ok := sess.FindVersion(n)
	if !ok {
		return entity.ArtifactVersion{}, versionNotFound()
	}
	return v, nil
}

// bundleFor returns the archive of v, reading it from the bundle store when
// an archive of the same content exists. stored reports whether the
// archive is present in the bundle store afterwards.
func (s *Service) bundleFor(ctx context.Context, sess *entity.Session, v entity.ArtifactVersion, author string) (b Bundle, objectName string, stored bool, err error) {
	objectName = bundleObjectName(sess, v)
	if s.bundles != nil {
		if raw, err := s.bundles.Get(ctx, sess.ID, objectName); err == nil {
			return Bundle{FileName: bundleFileName(sess, v), Version: v.Version, Content: raw}, objectName, true, nil
		} else if !errors.Is(err, bundlerepo.ErrNotFound) {
			log.Printf("bundle get session=%s %s: %v", sess.ID, objectName, err)
		}
	}
	b, err = BuildBundle(sess, v, author)
	if err != nil {
		return Bundle{}, "", false, err
	}
	if s.bundles == nil {
		return b, objectName, false, nil
	}
	if err := s.bundles.Put(ctx, sess.ID, objectName, b.Content); err != nil {
		log.Printf("bundle put session=%s %s: %v", sess.ID, objectName, err)
		return b, objectName, false, nil
	}
	return b, objectName, true, nil
}

// Download returns the archive of version n, or of the current version when
// n is zero.
func (s *Service) Download(ctx context.Context, user entity.UserID, id string, n int) (Bundle, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return Bundle{}, err
	}
	v, err := resolveRef(sess, n)
	if err != nil {
		return Bundle{}, err
	}
	b, _, _, err := s.bundleFor(ctx, sess, v, user.String())
	return b, err
}

// DownloadURL returns a link to the archive. Stores that cannot presign fall
// back to the gateway download route.
func (s *Service) DownloadURL(ctx context.Context, user entity.UserID, id string, n int) (*DownloadLink, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return nil, err
	}
	v, err := resolveRef(sess, n)
	if err != nil {
		return nil, err
	}
	link := &DownloadLink{
		URL:      fmt.Sprintf("/api/components/%s/%d/download", sess.ID, v.Version),
		FileName: bundleFileName(sess, v),
		Version:  v.Version,
	}
	_, objectName, stored, err := s.bundleFor(ctx, sess, v, user.String())
	if err != nil {
		return nil, err
	}
	if !stored {
		return link, nil
	}
	url, err := s.bundles.GetURL(ctx, sess.ID, objectName)
	if err != nil {
		return nil, fmt.Errorf("presign bundle: %w", err)
	}
	if url != "" {
		link.URL = url
		link.Presigned = true
	}
	return link, nil
}

// Watch subscribes to change events of a readable session.
func (s *Service) Watch(ctx context.Context, user entity.UserID, id string) (<-chan sessionevent.Event, error) {
	sess, err := s.load(ctx, user, id, readAccess)
	if err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, fmt.Errorf("session events are not enabled")
	}
	return s.events.Subscribe(ctx, sess.ID)
}
