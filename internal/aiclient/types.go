package aiclient

// ScreenshotContext is the per-screenshot context sent with a chat request.
type ScreenshotContext struct {
	ID      string `json:"id"`
	RawText string `json:"rawText"`
	Summary string `json:"summary"`
}

// ChatContext carries optional session context for a chat request.
type ChatContext struct {
	Screenshots     []ScreenshotContext `json:"screenshots"`
	SessionName     string              `json:"sessionName,omitempty"`
	SessionCategory string              `json:"sessionCategory,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID   string       `json:"sessionId"`
	UserMessage string       `json:"userMessage"`
	CurrentNote string       `json:"currentNote"`
	Context     *ChatContext `json:"context,omitempty"`
}

// ChatResponse is the reply of POST /api/chat.
type ChatResponse struct {
	Reply           string  `json:"reply"`
	UpdatedNote     *string `json:"updatedNote"`
	NoteWasModified bool    `json:"noteWasModified"`
}

// EntityInput is an entity as exchanged with the AI service.
type EntityInput struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// SummarizeRequest is the body of POST /api/summarize.
type SummarizeRequest struct {
	SessionID   string        `json:"sessionId"`
	SessionName string        `json:"sessionName"`
	Entities    []EntityInput `json:"entities"`
}

// SummarizeResponse is the reply of POST /api/summarize.
type SummarizeResponse struct {
	CondensedSummary string        `json:"condensedSummary"`
	SuggestedTitle   string        `json:"suggestedTitle"`
	KeyHighlights    []string      `json:"keyHighlights,omitempty"`
	Recommendations  []string      `json:"recommendations,omitempty"`
	MergedEntities   []EntityInput `json:"mergedEntities,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze. Image is a base64 data URI.
type AnalyzeRequest struct {
	Image string `json:"image"`
}

// AnalyzeResponse is the reply of POST /api/analyze.
type AnalyzeResponse struct {
	RawText  string        `json:"rawText,omitempty"`
	Summary  string        `json:"summary,omitempty"`
	Entities []EntityInput `json:"entities,omitempty"`
}
