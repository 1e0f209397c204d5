package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDepartmentNotFound signals an unknown department for the tenant.
	ErrDepartmentNotFound = errors.New("department not found")
	// ErrConversationNotFound signals a missing or foreign conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrApprovalNotFound signals a missing approval ticket.
	ErrApprovalNotFound = errors.New("approval not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidTransition signals an illegal approval state change.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a language-model provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
)
