package stream

import (
	"encoding/json"
	"reflect"
	"strings"
)

const (
	// filler below this length is always dropped
	minContentLen = 10
	// plain text below this length is dropped once a structured response exists
	shortContentLen = 50
)

// NoResponsePlaceholder is returned when filtering would otherwise leave the
// caller with an empty transcript.
const NoResponsePlaceholder = "No response from agent"

// Collector accumulates the messages produced while draining one turn's
// event stream and filters them into the final API response. The remote
// agent narrates its own delegation and tool use inline with its answer; the
// collector's job is a clean, non-redundant transcript that never loses the
// one authoritative structured result.
type Collector struct {
	messages    []Message
	artifact    string // top-level artifact text, when the stream carried one
	artifactIdx int    // index of the artifact message in messages
}

func NewCollector() *Collector {
	return &Collector{artifactIdx: -1}
}

// AddEvent folds one event's output into the running message list. A
// top-level task artifact wins over duplicate text from the same event.
func (c *Collector) AddEvent(ev Event) {
	artifactText := strings.TrimSpace(EventArtifactText(ev))
	if artifactText != "" {
		c.artifact = artifactText
		c.artifactIdx = len(c.messages)
		c.messages = append(c.messages, NewAgentResponse(artifactText, ExtractJSON(artifactText), nil))
	}

	for _, msg := range ProcessEvent(ev) {
		if artifactText != "" && !IsAnnouncement(msg) && duplicatesArtifact(msg.Content, artifactText) {
			continue
		}
		c.messages = append(c.messages, msg)
	}
}

// Add appends an already-built message (used by the per-frame streaming path).
func (c *Collector) Add(msg Message) {
	c.messages = append(c.messages, msg)
}

// Finalize applies the deduplication and priority rules and returns the
// final message list, never empty.
func (c *Collector) Finalize() []Message {
	filtered := make([]Message, 0, len(c.messages))
	hasStructured := false

	for i, msg := range c.messages {
		content := strings.TrimSpace(msg.Content)

		switch {
		case i == c.artifactIdx:
			// the authoritative artifact message is kept unconditionally
			filtered = append(filtered, msg)
			if msg.StructuredData != nil {
				hasStructured = true
			}
		case c.artifact != "" && !IsAnnouncement(msg) && duplicatesArtifact(content, c.artifact):
			// a trailing text event repeating the artifact payload
			continue
		case IsAnnouncement(msg):
			filtered = append(filtered, msg)
		case msg.StructuredData != nil:
			filtered = append(filtered, msg)
			hasStructured = true
		case looksStructured(content):
			// promote retroactively; extraction may have been skipped upstream
			if sd := ExtractJSON(content); sd != nil {
				msg.StructuredData = sd
				msg.Content = MarshalStructured(sd)
				if msg.Metadata == nil {
					msg.Metadata = map[string]any{"title": titleAgentResponse}
				}
				hasStructured = true
			}
			filtered = append(filtered, msg)
		case len(content) > shortContentLen:
			filtered = append(filtered, msg)
		case !hasStructured && len(content) > minContentLen:
			// while nothing substantive has arrived, a short answer may be the
			// only answer; keep it
			filtered = append(filtered, msg)
		}
	}

	if len(filtered) == 0 {
		return []Message{{Role: RoleAssistant, Content: NoResponsePlaceholder}}
	}
	return filtered
}

// IsAnnouncement reports whether a message is a delegation or tool
// announcement. Those are always kept and never deduplicated.
func IsAnnouncement(msg Message) bool {
	if msg.Metadata == nil {
		return false
	}
	title, _ := msg.Metadata["title"].(string)
	return title == titleDelegating || title == titleToolCall || title == titleToolResult
}

func looksStructured(content string) bool {
	if !strings.Contains(content, "{") {
		return false
	}
	for _, key := range knownCollectionKeys {
		if strings.Contains(content, `"`+key+`"`) {
			return true
		}
	}
	return false
}

// duplicatesArtifact reports whether content repeats the artifact payload,
// either verbatim or as an equivalent JSON value.
func duplicatesArtifact(content, artifactText string) bool {
	content = strings.TrimSpace(content)
	artifactText = strings.TrimSpace(artifactText)
	if content == artifactText {
		return true
	}
	artifactJSON := ExtractJSON(artifactText)
	if artifactJSON == nil {
		return false
	}
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return false
	}
	return reflect.DeepEqual(parsed, map[string]any(artifactJSON))
}
