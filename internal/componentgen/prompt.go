package componentgen

import (
	"strings"

	"uigen/internal/gateway/entity"
	"uigen/internal/util/jsonutil"
)

// Context windows. The counts are part of the observable prompt format.
const (
	// PromptHistoryWindow is the number of chat turns rendered into a prompt.
	PromptHistoryWindow = 3
	// PriorArtifactWindow is the number of earlier versions serialized into a
	// generate prompt.
	PriorArtifactWindow = 3
	// GenerateContextWindow is the number of messages loaded for generation.
	GenerateContextWindow = 10
	// ChatContextWindow is the number of messages loaded for chat.
	ChatContextWindow = 5
)

const generateInstructions = `You are an expert React component generator. Your task is to create high-quality, functional React components based on user requirements.

Guidelines:
1. Generate clean, modern React functional components using hooks
2. Use CSS modules or inline styles for styling
3. Make components responsive and accessible
4. Include PropTypes or TypeScript types when appropriate
5. Follow React best practices and conventions
6. Make the component self-contained and reusable
7. Use semantic HTML elements
8. Include proper ARIA attributes for accessibility

Response format:
Return a JSON object with the following structure:
{
  "jsx": "// The complete React component code",
  "css": "/* The CSS styles for the component */",
  "props": {
    "// Example props object - use strings for function props like 'onClick': 'function'"
  },
  "description": "Brief description of what the component does",
  "componentName": "ComponentName"
}

Important:
- JSX should be a complete, functional React component
- CSS should be valid CSS that styles the component
- Props should be an example object showing how to use the component (use string values for functions)
- Component should be named appropriately and use PascalCase
- For function props in the example, use string descriptions like "onClick": "function"
`

const refineInstructions = `You are an expert React component refiner. Your task is to modify an existing React component based on user feedback while maintaining its core functionality.

Guidelines:
1. Keep the existing component structure when possible
2. Apply only the requested changes
3. Maintain React best practices
4. Ensure the component remains functional and accessible
5. Preserve working features unless specifically asked to change them
`

const refineContract = `Return the refined component in the same JSON format:
{
  "jsx": "// The refined React component code",
  "css": "/* The refined CSS styles */",
  "props": {
    "// Updated example props"
  },
  "description": "Description of changes made",
  "componentName": "ComponentName"
}`

const chatInstructions = `You are a helpful AI assistant for a React component generator platform.

You can help users with:
- Understanding React concepts
- Explaining component code
- Suggesting improvements
- Answering questions about the platform
- Providing coding tips and best practices

Keep responses concise but helpful. If users ask for component generation or modification, acknowledge their request and suggest they use the appropriate generation tools.`

// priorArtifact is the slice of a stored version shown to the model.
type priorArtifact struct {
	Version     int            `json:"version"`
	Code        string         `json:"jsx"`
	Stylesheet  string         `json:"css"`
	Props       map[string]any `json:"props"`
	Description string         `json:"description,omitempty"`
	Name        string         `json:"componentName,omitempty"`
	Prompt      string         `json:"generationPrompt,omitempty"`
}

// ComposeGenerate builds the prompt for a new component. Only the last
// PriorArtifactWindow versions and PromptHistoryWindow messages are used.
func ComposeGenerate(prompt string, prior []entity.ArtifactVersion, history []entity.Message) string {
	var b strings.Builder
	b.WriteString(generateInstructions)
	b.WriteString("\n\n")

	if prior = lastN(prior, PriorArtifactWindow); len(prior) > 0 {
		ctx := make([]priorArtifact, 0, len(prior))
		for _, v := range prior {
			ctx = append(ctx, priorArtifact{
				Version:     v.Version,
				Code:        v.Code,
				Stylesheet:  v.Stylesheet,
				Props:       v.Props,
				Description: v.Description,
				Name:        v.Name,
				Prompt:      v.Prompt,
			})
		}
		if raw, err := jsonutil.MarshalNoEscapeIndent(ctx, "  "); err == nil {
			b.WriteString("Previous component context:\n")
			b.Write(raw)
			b.WriteString("\n\n")
		}
	}
	writeHistory(&b, history)
	b.WriteString("User Request: ")
	b.WriteString(prompt)
	return b.String()
}

// ComposeRefine embeds the current code and stylesheet verbatim.
func ComposeRefine(current Artifact, prompt string) string {
	var b strings.Builder
	b.WriteString(refineInstructions)
	b.WriteString("\nCurrent component:\nJSX: ")
	b.WriteString(current.Code)
	b.WriteString("\nCSS: ")
	b.WriteString(current.Stylesheet)
	b.WriteString("\n\nUser refinement request: ")
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(refineContract)
	return b.String()
}

// ComposeChat builds a plain conversational prompt.
func ComposeChat(message string, history []entity.Message) string {
	var b strings.Builder
	b.WriteString(chatInstructions)
	b.WriteString("\n\n")
	writeHistory(&b, history)
	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

func writeHistory(b *strings.Builder, history []entity.Message) {
	history = lastN(history, PromptHistoryWindow)
	if len(history) == 0 {
		return
	}
	b.WriteString("Recent conversation:\n")
	for _, m := range history {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
