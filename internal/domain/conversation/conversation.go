package conversation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/knowledgeops/internal/domain/approval"
)

// MaxTitleChars bounds a conversation title derived from its first question.
const MaxTitleChars = 100

// MaxSourceChunkChars bounds the passage excerpt stored with each cited source.
const MaxSourceChunkChars = 200

// Status is the lifecycle state of an assistant message.
type Status string

const (
	// StatusCompleted is an answer returned without review.
	StatusCompleted Status = "completed"
	// StatusPendingApproval is an escalated answer awaiting a reviewer.
	StatusPendingApproval Status = "pending_approval"
	// StatusApproved is an escalated answer accepted by a reviewer.
	StatusApproved Status = "approved"
	// StatusRejected is an escalated answer refused by a reviewer.
	StatusRejected Status = "rejected"
)

// Conversation groups the messages of one user thread inside a department.
type Conversation struct {
	ID           string
	TenantID     string
	DepartmentID string
	UserID       string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Source is a retrieval hit cited by an assistant message.
type Source struct {
	Title      string  `json:"title"`
	Chunk      string  `json:"chunk"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id,omitempty"`
	SourceType string  `json:"source_type,omitempty"`
}

// Message is one turn of a conversation. Only assistant messages carry scoring fields.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Confidence     float64
	ModelUsed      string
	TokensInput    int
	TokensOutput   int
	LatencyMs      float64
	Sources        []Source
	Status         Status
	CreatedAt      time.Time
}

// Exchange is one persisted question/answer turn, optionally escalated.
type Exchange struct {
	Conversation    *Conversation
	NewConversation bool
	User            *Message
	Assistant       *Message
	Approval        *approval.Approval // set only when the answer was escalated
}

// TitleFrom derives a conversation title from the opening question.
func TitleFrom(question string) string {
	return truncate(strings.TrimSpace(question), MaxTitleChars)
}

// Excerpt shortens passage text for storage alongside a message.
func Excerpt(content string) string {
	return truncate(content, MaxSourceChunkChars)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
