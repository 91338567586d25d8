package entity

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionDeleted  SessionStatus = "deleted"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionArchived, SessionDeleted:
		return true
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message actions recorded in MessageMetadata.Action.
const (
	ActionRefine     = "refine"
	ActionManualEdit = "manual_edit"
	ActionDuplicate  = "duplicate"
)

const DefaultSessionTitle = "New Component Session"

type MessageMetadata struct {
	Tokens         int       `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	ProcessingTime int64     `json:"processingTime,omitempty" yaml:"processingTime,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitzero" yaml:"startedAt,omitempty"`
	Action         string    `json:"action,omitempty" yaml:"action,omitempty"`
	TargetVersion  int       `json:"targetVersion,omitempty" yaml:"targetVersion,omitempty"`
	SourceVersion  int       `json:"sourceVersion,omitempty" yaml:"sourceVersion,omitempty"`
	NewVersion     int       `json:"newVersion,omitempty" yaml:"newVersion,omitempty"`
}

// Message is one chat turn. Messages are append-only.
type Message struct {
	Role      Role            `json:"role" yaml:"role"`
	Content   string          `json:"content" yaml:"content"`
	CreatedAt time.Time       `json:"timestamp" yaml:"timestamp"`
	Metadata  MessageMetadata `json:"metadata" yaml:"metadata"`
}

type GenerationMetadata struct {
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	Tokens         int       `json:"tokens" yaml:"tokens"`
	ProcessingTime int64     `json:"processingTime" yaml:"processingTime"`
	StartedAt      time.Time `json:"startedAt,omitzero" yaml:"startedAt,omitempty"`
	DuplicatedFrom int       `json:"duplicatedFrom,omitempty" yaml:"duplicatedFrom,omitempty"`
	EditedFrom     int       `json:"editedFrom,omitempty" yaml:"editedFrom,omitempty"`
}

// ArtifactVersion is one numbered snapshot of the generated component.
type ArtifactVersion struct {
	Version     int                `json:"version" yaml:"version"`
	Code        string             `json:"jsx" yaml:"jsx"`
	Stylesheet  string             `json:"css" yaml:"css"`
	Props       map[string]any     `json:"props" yaml:"props"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Name        string             `json:"componentName,omitempty" yaml:"componentName,omitempty"`
	Prompt      string             `json:"generationPrompt,omitempty" yaml:"generationPrompt,omitempty"`
	Metadata    GenerationMetadata `json:"metadata" yaml:"metadata"`
	CreatedAt   time.Time          `json:"createdAt" yaml:"createdAt"`
}

type Settings struct {
	AutoSave  bool   `json:"autoSave" yaml:"autoSave"`
	Model     string `json:"model" yaml:"model"`
	MaxTokens int    `json:"maxTokens" yaml:"maxTokens"`
}

type Statistics struct {
	TotalMessages int       `json:"totalMessages" yaml:"totalMessages"`
	TotalTokens   int       `json:"totalTokens" yaml:"totalTokens"`
	LastActiveAt  time.Time `json:"lastActiveAt" yaml:"lastActiveAt"`
}

// Session is the conversation and version history owned by one user.
// CurrentVersion is zero until the first version is appended.
type Session struct {
	ID             string            `json:"id" yaml:"id"`
	UserID         UserID            `json:"userId" yaml:"userId"`
	Title          string            `json:"title" yaml:"title"`
	Description    string            `json:"description" yaml:"description"`
	Tags           []string          `json:"tags" yaml:"tags"`
	IsPublic       bool              `json:"isPublic" yaml:"isPublic"`
	Status         SessionStatus     `json:"status" yaml:"status"`
	Settings       Settings          `json:"settings" yaml:"settings"`
	Messages       []Message         `json:"messages" yaml:"messages"`
	Versions       []ArtifactVersion `json:"components" yaml:"components"`
	CurrentVersion int               `json:"currentComponentVersion" yaml:"currentComponentVersion"`
	Statistics     Statistics        `json:"statistics" yaml:"statistics"`
	Revision       int64             `json:"revision" yaml:"-"`
	CreatedAt      time.Time         `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// SessionSummary is the list view of a session without messages and versions.
type SessionSummary struct {
	ID             string        `json:"id"`
	UserID         UserID        `json:"userId"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Tags           []string      `json:"tags"`
	IsPublic       bool          `json:"isPublic"`
	Status         SessionStatus `json:"status"`
	Settings       Settings      `json:"settings"`
	CurrentVersion int           `json:"currentComponentVersion"`
	VersionCount   int           `json:"componentCount"`
	Statistics     Statistics    `json:"statistics"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		UserID:         s.UserID,
		Title:          s.Title,
		Description:    s.Description,
		Tags:           append([]string{}, s.Tags...),
		IsPublic:       s.IsPublic,
		Status:         s.Status,
		Settings:       s.Settings,
		CurrentVersion: s.CurrentVersion,
		VersionCount:   len(s.Versions),
		Statistics:     s.Statistics,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (s *Session) OwnedBy(user UserID) bool {
	return s != nil && !user.IsZero() && s.UserID.String() == user.String()
}

// FindVersion returns the version numbered n.
func (s *Session) FindVersion(n int) (ArtifactVersion, bool) {
	if s == nil || n <= 0 {
		return ArtifactVersion{}, false
	}
	for _, v := range s.Versions {
		if v.Version == n {
			return v, true
		}
	}
	return ArtifactVersion{}, false
}

func (s *Session) versionIndex(n int) int {
	for i, v := range s.Versions {
		if v.Version == n {
			return i
		}
	}
	return -1
}

// ReplaceVersion overwrites the payload of version n in place.
func (s *Session) ReplaceVersion(v ArtifactVersion) bool {
	idx := s.versionIndex(v.Version)
	if idx < 0 {
		return false
	}
	s.Versions[idx] = v
	return true
}

// NextVersion is the number the next appended version receives.
func (s *Session) NextVersion() int {
	return len(s.Versions) + 1
}

// RecomputeStatistics derives the aggregate counters from the message list.
// It runs before every persist regardless of which field changed.
func (s *Session) RecomputeStatistics(now time.Time) {
	total := 0
	for _, m := range s.Messages {
		total += m.Metadata.Tokens
	}
	s.Statistics.TotalMessages = len(s.Messages)
	s.Statistics.TotalTokens = total
	s.Statistics.LastActiveAt = now
}

// MatchesSearch reports whether term occurs in the title, description or a
// tag, ignoring case. An empty term matches everything.
func (s *Session) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Title), term) || strings.Contains(strings.ToLower(s.Description), term) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Tags = append([]string{}, s.Tags...)
	out.Messages = append([]Message(nil), s.Messages...)
	if s.Versions != nil {
		out.Versions = make([]ArtifactVersion, len(s.Versions))
		for i, v := range s.Versions {
			v.Props = CloneProps(v.Props)
			out.Versions[i] = v
		}
	}
	return &out
}

// CloneProps deep-copies a decoded JSON property map.
func CloneProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneProps(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}
