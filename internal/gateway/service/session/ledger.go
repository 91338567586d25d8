package session

import (
	"fmt"
	"strings"
	"time"

	"uigen/internal/componentgen"
	"uigen/internal/gateway/apperr"
	"uigen/internal/gateway/entity"
)

const (
	msgSessionNotFound   = "Session not found"
	msgSessionNoAccess   = "Session not found or access denied"
	msgVersionNotFound   = "Component version not found"
	msgNoCurrent         = "No components found in this session"
	msgNoVersions        = "No components found in this session. Generate a component first."
	msgRevisionConflict  = "Session was modified by another request, please retry"
	refinementPromptFmt  = "Refinement of v%d: %s"
	duplicatePromptFmt   = "Duplicate of v%d"
	manualEditPromptFmt  = "Manual edit of v%d"
	generatedReplyFmt    = "I've generated a %s component for you. %s"
	refinedReplyFmt      = "I've refined the component based on your request. %s"
	duplicatedMessageFmt = "Duplicated component version %d as version %d"
	editedMessageFmt     = "Manually updated component version %d"
	editedAsMessageFmt   = "Manually updated component version %d as version %d"
)

// EditMode selects how manual edits are recorded.
type EditMode string

const (
	// EditAsNewVersion appends the edited payload as a new version.
	EditAsNewVersion EditMode = "version"
	// EditInPlace overwrites the edited version.
	EditInPlace EditMode = "in_place"
)

func ParseEditMode(raw string) (EditMode, error) {
	switch EditMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EditAsNewVersion:
		return EditAsNewVersion, nil
	case EditInPlace:
		return EditInPlace, nil
	}
	return "", fmt.Errorf("unknown manual edit mode %q", raw)
}

// ManualEdit replaces the code and optionally the stylesheet and props.
type ManualEdit struct {
	Code       string
	Stylesheet *string
	Props      map[string]any
}

func versionNotFound() error { return apperr.NotFound(msgVersionNotFound) }

// AppendGeneration records a generate exchange and makes the new version
// current.
func AppendGeneration(s *entity.Session, prompt string, res *componentgen.Result, now time.Time) entity.ArtifactVersion {
	s.Messages = append(s.Messages,
		entity.Message{
			Role:      entity.RoleUser,
			Content:   prompt,
			CreatedAt: now,
			Metadata:  entity.MessageMetadata{StartedAt: res.Metadata.StartedAt},
		},
		assistantMessage(fmt.Sprintf(generatedReplyFmt, res.Data.Name, res.Data.Description), res.Metadata, now),
	)
	return appendVersion(s, res.Data, prompt, generationMetadata(res.Metadata), now)
}

// AppendRefinement records a refine exchange against version target.
func AppendRefinement(s *entity.Session, target int, prompt string, res *componentgen.Result, now time.Time) (entity.ArtifactVersion, error) {
	if _, ok := s.FindVersion(target); !ok {
		return entity.ArtifactVersion{}, versionNotFound()
	}
	s.Messages = append(s.Messages,
		entity.Message{
			Role:      entity.RoleUser,
			Content:   prompt,
			CreatedAt: now,
			Metadata: entity.MessageMetadata{
				StartedAt:     res.Metadata.StartedAt,
				Action:        entity.ActionRefine,
				TargetVersion: target,
			},
		},
		assistantMessage(fmt.Sprintf(refinedReplyFmt, res.Data.Description), res.Metadata, now),
	)
	return appendVersion(s, res.Data, fmt.Sprintf(refinementPromptFmt, target, prompt), generationMetadata(res.Metadata), now), nil
}

// ApplyManualEdit changes the payload of version target. With
// EditAsNewVersion the edited payload becomes a new current version and the
// target stays untouched.
func ApplyManualEdit(s *entity.Session, target int, edit ManualEdit, mode EditMode, now time.Time) (entity.ArtifactVersion, error) {
	orig, ok := s.FindVersion(target)
	if !ok {
		return entity.ArtifactVersion{}, versionNotFound()
	}
	edited := componentgen.ArtifactOf(orig)
	edited.Code = edit.Code
	if edit.Stylesheet != nil {
		edited.Stylesheet = *edit.Stylesheet
	}
	if edit.Props != nil {
		edited.Props = entity.CloneProps(edit.Props)
	}

	if mode == EditInPlace {
		orig.Code, orig.Stylesheet, orig.Props = edited.Code, edited.Stylesheet, edited.Props
		s.ReplaceVersion(orig)
		s.Messages = append(s.Messages, actionMessage(fmt.Sprintf(editedMessageFmt, target), entity.MessageMetadata{
			Action:        entity.ActionManualEdit,
			TargetVersion: target,
		}, now))
		return orig, nil
	}

	meta := orig.Metadata
	meta.EditedFrom = target
	meta.DuplicatedFrom = 0
	v := appendVersion(s, edited, fmt.Sprintf(manualEditPromptFmt, target), meta, now)
	s.Messages = append(s.Messages, actionMessage(fmt.Sprintf(editedAsMessageFmt, target, v.Version), entity.MessageMetadata{
		Action:        entity.ActionManualEdit,
		TargetVersion: target,
		NewVersion:    v.Version,
	}, now))
	return v, nil
}

// DuplicateVersion copies version source into a new current version.
func DuplicateVersion(s *entity.Session, source int, now time.Time) (entity.ArtifactVersion, error) {
	orig, ok := s.FindVersion(source)
	if !ok {
		return entity.ArtifactVersion{}, versionNotFound()
	}
	meta := orig.Metadata
	meta.DuplicatedFrom = source
	meta.EditedFrom = 0
	v := appendVersion(s, componentgen.ArtifactOf(orig), fmt.Sprintf(duplicatePromptFmt, source), meta, now)
	s.Messages = append(s.Messages, actionMessage(fmt.Sprintf(duplicatedMessageFmt, source, v.Version), entity.MessageMetadata{
		Action:        entity.ActionDuplicate,
		SourceVersion: source,
		NewVersion:    v.Version,
	}, now))
	return v, nil
}

func SetCurrentVersion(s *entity.Session, n int) error {
	if _, ok := s.FindVersion(n); !ok {
		return versionNotFound()
	}
	s.CurrentVersion = n
	return nil
}

// AppendChat records a plain chat exchange. No version is created.
func AppendChat(s *entity.Session, message string, res *componentgen.ChatResult, now time.Time) {
	s.Messages = append(s.Messages,
		entity.Message{
			Role:      entity.RoleUser,
			Content:   message,
			CreatedAt: now,
			Metadata:  entity.MessageMetadata{StartedAt: res.Metadata.StartedAt},
		},
		assistantMessage(res.Message, res.Metadata, now),
	)
}

func appendVersion(s *entity.Session, a componentgen.Artifact, prompt string, meta entity.GenerationMetadata, now time.Time) entity.ArtifactVersion {
	props := a.Props
	if props == nil {
		props = map[string]any{}
	}
	v := entity.ArtifactVersion{
		Version:     s.NextVersion(),
		Code:        a.Code,
		Stylesheet:  a.Stylesheet,
		Props:       entity.CloneProps(props),
		Description: a.Description,
		Name:        a.Name,
		Prompt:      prompt,
		Metadata:    meta,
		CreatedAt:   now,
	}
	s.Versions = append(s.Versions, v)
	s.CurrentVersion = v.Version
	return v
}

func generationMetadata(m componentgen.Metadata) entity.GenerationMetadata {
	return entity.GenerationMetadata{
		Model:          m.Model,
		Tokens:         m.Tokens,
		ProcessingTime: m.ProcessingTime,
		StartedAt:      m.StartedAt,
	}
}

func assistantMessage(content string, m componentgen.Metadata, now time.Time) entity.Message {
	return entity.Message{
		Role:      entity.RoleAssistant,
		Content:   content,
		CreatedAt: now,
		Metadata: entity.MessageMetadata{
			Tokens:         m.Tokens,
			Model:          m.Model,
			ProcessingTime: m.ProcessingTime,
			StartedAt:      m.StartedAt,
		},
	}
}

func actionMessage(content string, meta entity.MessageMetadata, now time.Time) entity.Message {
	return entity.Message{Role: entity.RoleUser, Content: content, CreatedAt: now, Metadata: meta}
}
