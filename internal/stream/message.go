package stream

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	titleAgentResponse = "Agent Response"
	titleDelegating    = "🔄 Delegating to Agent"
	titleToolCall      = "🛠️ Tool Call"
	titleToolResult    = "🛠️ Tool Result"
)

// Message is one externally visible entry of a chat transcript.
type Message struct {
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
}

// NewAgentResponse builds an assistant message. When structured data is
// present the content is always its indented serialization, so the text and
// machine-readable views never diverge. A nil metadata defaults to the
// standard title except for delegation/tool announcements.
func NewAgentResponse(content string, structured map[string]any, metadata map[string]any) Message {
	if structured != nil {
		content = MarshalStructured(structured)
	}
	if metadata == nil && structured != nil {
		metadata = map[string]any{"title": titleAgentResponse}
	} else if metadata == nil && !strings.HasPrefix(content, "🤖") && !strings.HasPrefix(content, "🛠️") {
		metadata = map[string]any{"title": titleAgentResponse}
	}
	return Message{
		Role:           RoleAssistant,
		Content:        content,
		Metadata:       metadata,
		StructuredData: structured,
	}
}

// MarshalStructured is the canonical serialization used everywhere a
// structured payload becomes message content.
func MarshalStructured(v map[string]any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
