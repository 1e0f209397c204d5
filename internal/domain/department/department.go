package department

import "strings"

// DefaultConfidenceThreshold is the escalation cutoff when a department sets none.
const DefaultConfidenceThreshold = 0.85

// DefaultSystemPrompt is used when neither the department nor its kind defines one.
const DefaultSystemPrompt = `You are "KnowledgeOps", an AI assistant for enterprise knowledge management.
Answer questions accurately based on the provided context. If you're not sure, say so.
Always cite your sources when the information comes from the knowledge base.`

// kindPrompts are built-in prompts for well-known department kinds.
var kindPrompts = map[string]string{
	"it-ops": "You are an IT operations expert specializing in server, network, and infrastructure " +
		"troubleshooting. Provide step-by-step solutions and reference relevant documentation.",
	"hr": "You are an HR expert specializing in company policies, benefits, and employee onboarding. " +
		"Provide clear, policy-compliant answers.",
	"legal": "You are a legal expert specializing in contracts, compliance, and corporate governance. " +
		"Always include disclaimers about seeking professional legal advice for critical matters.",
	"finance": "You are a finance expert specializing in budgeting, accounting, and financial reporting. " +
		"Be precise with numbers and reference relevant financial policies.",
	"engineering": "You are a software engineering expert specializing in development practices, code review, " +
		"and technical architecture. Provide practical, actionable advice.",
}

// Config is the per-department routing input of the query pipeline.
type Config struct {
	ID                  string
	TenantID            string
	Name                string
	Kind                string
	Model               string
	ConfidenceThreshold float64
	SystemPrompt        string
	TopK                int
	MaxContextTokens    int
	VisionEnabled       bool
}

// Prompt resolves the effective system prompt: explicit, then by kind, then the default.
func (c *Config) Prompt() string {
	if strings.TrimSpace(c.SystemPrompt) != "" {
		return c.SystemPrompt
	}
	if p, ok := kindPrompts[strings.ToLower(c.Kind)]; ok {
		return p
	}
	return DefaultSystemPrompt
}

// Threshold returns the escalation cutoff, falling back to the default when unset.
func (c *Config) Threshold() float64 {
	if c.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return c.ConfidenceThreshold
}
