package llmclient

// ModelInfo describes a selectable model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const DefaultModel = "gemini-2.0-flash-lite"

var geminiModels = []ModelInfo{
	{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", Description: "Lightweight and fast multimodal model"},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Description: "Fast and versatile multimodal model"},
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Description: "High-performance multimodal model"},
	{ID: "gemini-pro", Name: "Gemini Pro", Description: "Standard Gemini model"},
}

// Models returns the selectable Gemini models.
func Models() []ModelInfo {
	return append([]ModelInfo(nil), geminiModels...)
}
