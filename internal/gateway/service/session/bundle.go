package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/crc32"

	"uigen/internal/gateway/entity"
	"uigen/internal/util/jsonutil"
)

var componentNameRe = regexp.MustCompile(`(?:function|const)\s+(\w+)`)

// Bundle is a downloadable archive of one version.
type Bundle struct {
	FileName string
	Version  int
	Content  []byte
}

type bundleFile struct {
	name string
	body []byte
}

type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Main         string            `json:"main"`
	Dependencies map[string]string `json:"dependencies"`
	Keywords     []string          `json:"keywords"`
	Author       string            `json:"author"`
}

// componentFileName derives the file stem from the first declared function
// or const in the code.
func componentFileName(code string) string {
	if m := componentNameRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return "Component"
}

// BuildBundle writes code, stylesheet, package.json and README.md into a
// maximally compressed ZIP.
func BuildBundle(s *entity.Session, v entity.ArtifactVersion, author string) (Bundle, error) {
	name := componentFileName(v.Code)

	manifest, err := jsonutil.MarshalNoEscapeIndent(packageManifest{
		Name:        strings.ToLower(name) + "-component",
		Version:     "1.0.0",
		Description: "Generated React component - " + s.Title,
		Main:        name + ".jsx",
		Dependencies: map[string]string{
			"react":     "^18.0.0",
			"react-dom": "^18.0.0",
		},
		Keywords: []string{"react", "component", "generated"},
		Author:   author,
	}, "  ")
	if err != nil {
		return Bundle{}, fmt.Errorf("encode package.json: %w", err)
	}

	files := []bundleFile{{name + ".jsx", []byte(v.Code)}}
	if v.Stylesheet != "" {
		files = append(files, bundleFile{name + ".css", []byte(v.Stylesheet)})
	}
	files = append(files,
		bundleFile{"package.json", manifest},
		bundleFile{"README.md", []byte(renderReadme(s.Title, name, v))},
	)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	modified := v.CreatedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return Bundle{}, fmt.Errorf("add %s: %w", f.name, err)
		}
		if _, err := w.Write(f.body); err != nil {
			return Bundle{}, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Bundle{}, fmt.Errorf("finalize zip: %w", err)
	}
	return Bundle{
		FileName: bundleFileName(s, v),
		Version:  v.Version,
		Content:  buf.Bytes(),
	}, nil
}

func bundleFileName(s *entity.Session, v entity.ArtifactVersion) string {
	return fmt.Sprintf("%s-v%d.zip", s.Title, v.Version)
}

// bundleObjectName keys stored archives by version and by everything that
// ends up inside the archive, so edits in place never serve a stale bundle.
func bundleObjectName(s *entity.Session, v entity.ArtifactVersion) string {
	props, _ := jsonutil.MarshalNoEscape(v.Props)
	h := crc32.NewIEEE()
	for _, part := range []string{s.Title, v.Code, v.Stylesheet, string(props), v.Prompt} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("v%d-%08x.zip", v.Version, h.Sum32())
}

func renderReadme(title, name string, v entity.ArtifactVersion) string {
	keys := make([]string, 0, len(v.Props))
	for k := range v.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]string, 0, len(keys))
	props := make([]string, 0, len(keys))
	for _, k := range keys {
		val := jsonLiteral(v.Props[k])
		attrs = append(attrs, fmt.Sprintf("%s={%s}", k, val))
		props = append(props, fmt.Sprintf("- `%s`: %s - Example: `%s`", k, jsType(v.Props[k]), val))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Component\n\nGenerated with Component Generator Platform\n\n", name)
	b.WriteString("## Usage\n\n```jsx\n")
	fmt.Fprintf(&b, "import %s from './%s';\n\nfunction App() {\n  return (\n    <div>\n      <%s %s />\n    </div>\n  );\n}\n", name, name, name, strings.Join(attrs, " "))
	b.WriteString("```\n\n## Props\n\n")
	b.WriteString(strings.Join(props, "\n"))
	b.WriteString("\n\n## Generated\n")
	fmt.Fprintf(&b, "- Session: %s\n- Version: %d\n- Created: %s\n", title, v.Version, v.CreatedAt.UTC().Format(time.RFC3339))
	if v.Prompt != "" {
		fmt.Fprintf(&b, "- Prompt: %s\n", v.Prompt)
	}
	return b.String()
}

func jsonLiteral(v any) string {
	raw, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprint(v))
	}
	return string(raw)
}

func jsType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	default:
		return "object"
	}
}
