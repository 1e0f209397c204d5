package domain

// Chat roles understood by every OpenAI-compatible backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat-completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// Image is an attachment submitted with a query for vision analysis.
type Image struct {
	Data     []byte
	MimeType string
}

// Completion is the result of one chat-completion call. Token counts are provider-reported
// and zero when the backend does not report usage.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
