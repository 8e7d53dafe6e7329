package llm

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the full input to a completion call.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// LastUserMessage returns the content of the most recent user turn.
func (p *Prompt) LastUserMessage() string {
	if p == nil {
		return ""
	}
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if p.Messages[i].Role == RoleUser {
			return p.Messages[i].Content
		}
	}
	return ""
}

// RequestOptions tweaks a single completion. Nil fields keep provider defaults.
type RequestOptions struct {
	// Model overrides the provider's configured model for this call.
	Model       string
	MaxTokens   *int
	Temperature *float64
}
