// Package componentgen turns natural-language requests into UI component
// artifacts: it composes model prompts, calls the model and structures the
// free-text reply.
package componentgen

import "uigen/internal/gateway/entity"

// Artifact is the structured component extracted from one model reply.
type Artifact struct {
	Code        string         `json:"jsx"`
	Stylesheet  string         `json:"css"`
	Props       map[string]any `json:"props"`
	Description string         `json:"description"`
	Name        string         `json:"componentName"`
}

// ArtifactOf returns the payload of a stored version.
func ArtifactOf(v entity.ArtifactVersion) Artifact {
	return Artifact{
		Code:        v.Code,
		Stylesheet:  v.Stylesheet,
		Props:       entity.CloneProps(v.Props),
		Description: v.Description,
		Name:        v.Name,
	}
}
