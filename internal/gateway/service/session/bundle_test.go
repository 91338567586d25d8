package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"uigen/internal/gateway/entity"
)

func TestComponentFileName(t *testing.T) {
	assert.Equal(t, "LoginForm", componentFileName("function LoginForm() { return null; }"))
	assert.Equal(t, "Card", componentFileName("const Card = () => <div/>;"))
	assert.Equal(t, "Component", componentFileName("export default () => <div/>;"))
}

func TestBundleObjectNameTracksContent(t *testing.T) {
	s := &entity.Session{Title: "Login"}
	v := entity.ArtifactVersion{Version: 2, Code: "const A = 1;", Props: map[string]any{"a": 1.0}}
	first := bundleObjectName(s, v)
	assert.Regexp(t, `^v2-[0-9a-f]{8}\.zip$`, first)
	assert.Equal(t, first, bundleObjectName(s, v))

	v.Stylesheet = ".a{}"
	assert.NotEqual(t, first, bundleObjectName(s, v))
}

func TestBundleSkipsEmptyStylesheet(t *testing.T) {
	s := &entity.Session{Title: "Plain"}
	v := entity.ArtifactVersion{Version: 1, Code: "function Plain() {}", Props: map[string]any{}, CreatedAt: time.Unix(0, 0)}
	b, err := BuildBundle(s, v, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "Plain-v1.zip", b.FileName)
	assert.NotContains(t, string(b.Content), "Plain.css")
	assert.Contains(t, string(b.Content), "Plain.jsx")
}

func TestJSType(t *testing.T) {
	assert.Equal(t, "string", jsType("x"))
	assert.Equal(t, "boolean", jsType(true))
	assert.Equal(t, "number", jsType(1.5))
	assert.Equal(t, "object", jsType(map[string]any{}))
	assert.Equal(t, "object", jsType([]any{}))
}
