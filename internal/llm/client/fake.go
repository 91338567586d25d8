package llmclient

import (
	"context"
	"strings"
	"sync"
)

// FakeClient returns deterministic responses for offline runs and tests.
// Respond, when set, replaces the built-in canned replies.
type FakeClient struct {
	Respond func(req Request) (string, error)

	mu       sync.Mutex
	requests []Request
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Requests returns the requests received so far.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *FakeClient) Generate(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	if f.Respond != nil {
		text, err := f.Respond(req)
		if err != nil {
			return Response{}, err
		}
		return Response{Text: text, Model: model}, nil
	}
	switch {
	case strings.Contains(req.Prompt, "User refinement request:"):
		return Response{Text: fakeRefined, Model: model}, nil
	case strings.Contains(req.Prompt, "User Request:"):
		return Response{Text: fakeComponent, Model: model}, nil
	default:
		return Response{Text: "This is an offline reply. Configure GEMINI_API_KEY to talk to a real model.", Model: model}, nil
	}
}

const fakeComponent = `{
  "jsx": "const FakeCard = ({ title, onClick }) => {\n  return <button className=\"fake-card\" onClick={onClick}>{title}</button>;\n};\n\nexport default FakeCard;",
  "css": ".fake-card { padding: 8px 12px; border-radius: 6px; }",
  "props": { "title": "Hello", "onClick": "function" },
  "description": "A clickable card rendered offline.",
  "componentName": "FakeCard"
}`

const fakeRefined = `{
  "jsx": "const FakeCard = ({ title, onClick }) => {\n  return <button className=\"fake-card fake-card--refined\" onClick={onClick}>{title}</button>;\n};\n\nexport default FakeCard;",
  "css": ".fake-card { padding: 8px 12px; border-radius: 6px; }\n.fake-card--refined { font-weight: 600; }",
  "props": { "title": "Hello", "onClick": "function" },
  "description": "Made the label bold.",
  "componentName": "FakeCard"
}`
