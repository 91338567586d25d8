package componentgen

import (
	"regexp"
	"strings"

	"uigen/internal/util/jsonutil"
)

const (
	FallbackDescription = "Generated React component"
	FallbackName        = "GeneratedComponent"
	functionPlaceholder = `: "function() { ... }"`
)

var (
	objectSpanRe = regexp.MustCompile(`\{[\s\S]*\}`)

	arrowFuncRe = regexp.MustCompile(`:\s*\(\)\s*=>\s*\{[^}]*\}`)
	plainFuncRe = regexp.MustCompile(`:\s*function\s*\([^)]*\)\s*\{[^}]*\}`)

	codeFieldFenceRe  = regexp.MustCompile("```(?:jsx|tsx|javascript|js)?\\n?([\\s\\S]*?)\\n?```")
	styleFieldFenceRe = regexp.MustCompile("```css\\n?([\\s\\S]*?)\\n?```")

	codeBlockRe  = regexp.MustCompile("```(?:jsx|tsx|javascript|js)\\n([\\s\\S]*?)\\n```")
	styleBlockRe = regexp.MustCompile("```css\\n([\\s\\S]*?)\\n```")
)

// Extract structures a raw model reply. It never fails: when no usable JSON
// object is found it falls back to fenced code blocks, and finally to the raw
// text as code. The second return value reports whether the JSON path
// succeeded.
func Extract(raw string) (Artifact, bool) {
	if a, ok := extractObject(raw); ok {
		return a, true
	}
	return extractFenced(raw), false
}

func extractObject(raw string) (Artifact, bool) {
	span := objectSpanRe.FindString(raw)
	if span == "" {
		return Artifact{}, false
	}
	obj, ok := decodeObject(span)
	if !ok {
		obj, ok = decodeObject(rewriteFunctionLiterals(span))
	}
	if !ok {
		return Artifact{}, false
	}

	a := Artifact{
		Code:        stringField(obj, "jsx"),
		Stylesheet:  stringField(obj, "css"),
		Description: stringField(obj, "description"),
		Name:        stringField(obj, "componentName"),
		Props:       map[string]any{},
	}
	if props, ok := obj["props"].(map[string]any); ok {
		a.Props = props
	}
	// An object without code is not a component payload (e.g. a CSS rule body
	// like "{}" picked up from prose).
	if strings.TrimSpace(a.Code) == "" {
		return Artifact{}, false
	}
	if strings.Contains(a.Code, "```") {
		if m := codeFieldFenceRe.FindStringSubmatch(a.Code); m != nil {
			a.Code = strings.TrimSpace(m[1])
		}
	}
	if strings.Contains(a.Stylesheet, "```") {
		if m := styleFieldFenceRe.FindStringSubmatch(a.Stylesheet); m != nil {
			a.Stylesheet = strings.TrimSpace(m[1])
		}
	}
	return a, true
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := jsonutil.UnmarshalFlex([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// rewriteFunctionLiterals replaces simple inline function values with a
// quoted placeholder. Nested braces are not handled.
func rewriteFunctionLiterals(text string) string {
	text = arrowFuncRe.ReplaceAllLiteralString(text, functionPlaceholder)
	return plainFuncRe.ReplaceAllLiteralString(text, functionPlaceholder)
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func extractFenced(raw string) Artifact {
	a := Artifact{
		Code:        raw,
		Props:       map[string]any{},
		Description: FallbackDescription,
		Name:        FallbackName,
	}
	if m := codeBlockRe.FindStringSubmatch(raw); m != nil {
		a.Code = m[1]
	}
	if m := styleBlockRe.FindStringSubmatch(raw); m != nil {
		a.Stylesheet = m[1]
	}
	return a
}
