package componentgen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"uigen/internal/gateway/entity"
)

func messages(n int) []entity.Message {
	out := make([]entity.Message, 0, n)
	for i := 1; i <= n; i++ {
		role := entity.RoleUser
		if i%2 == 0 {
			role = entity.RoleAssistant
		}
		out = append(out, entity.Message{Role: role, Content: fmt.Sprintf("turn-%d", i)})
	}
	return out
}

func versions(n int) []entity.ArtifactVersion {
	out := make([]entity.ArtifactVersion, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, entity.ArtifactVersion{Version: i, Code: fmt.Sprintf("const V%d = () => <div/>;", i)})
	}
	return out
}

func TestComposeGenerateWindows(t *testing.T) {
	p := ComposeGenerate("Build a login form", versions(5), messages(10))

	assert.True(t, strings.HasSuffix(p, "User Request: Build a login form"))
	assert.Contains(t, p, `"jsx": "const V5 = () => <div/>;"`)
	assert.Contains(t, p, "const V3")
	assert.NotContains(t, p, "const V2")
	assert.Contains(t, p, "Recent conversation:\nassistant: turn-8\nuser: turn-9\nassistant: turn-10\n")
	assert.NotContains(t, p, "turn-7")
	assert.Contains(t, p, `"componentName": "ComponentName"`)
}

func TestComposeGenerateOmitsEmptyContext(t *testing.T) {
	p := ComposeGenerate("Build a card", nil, nil)
	assert.NotContains(t, p, "Previous component context")
	assert.NotContains(t, p, "Recent conversation")
	assert.True(t, strings.HasSuffix(p, "\n\nUser Request: Build a card"))
}

func TestComposeRefineEmbedsCurrentPayload(t *testing.T) {
	p := ComposeRefine(Artifact{Code: "const A = () => <b/>;", Stylesheet: ".a{}"}, "make it blue")
	assert.Contains(t, p, "JSX: const A = () => <b/>;\nCSS: .a{}\n")
	assert.Contains(t, p, "User refinement request: make it blue")
	assert.Contains(t, p, "Return the refined component in the same JSON format")
}

func TestComposeChat(t *testing.T) {
	p := ComposeChat("what is a hook?", messages(5))
	assert.True(t, strings.HasSuffix(p, "User: what is a hook?"))
	assert.Contains(t, p, "user: turn-3\nassistant: turn-4\nuser: turn-5\n")
	assert.NotContains(t, p, "turn-2")
	assert.NotContains(t, p, `"jsx"`)
}
