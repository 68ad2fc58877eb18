package stream

import (
	"encoding/json"
	"regexp"
	"strings"
)

// knownCollectionKeys are the top-level discriminators that mark an embedded
// JSON object as a structured agent payload.
var knownCollectionKeys = []string{"properties", "jobs"}

var codeBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?s)```\\s*(.*?)\\s*```"),
}

func hasKnownKey(m map[string]any) bool {
	for _, k := range knownCollectionKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// ExtractJSON recovers a structured payload embedded in free text. It first
// tries the whole text as JSON, then falls back to scanning fenced code
// blocks with a balanced-brace walk; nested braces inside fences defeat a
// plain non-greedy regex. Returns nil when the text is just prose, even if
// it contains brace characters.
func ExtractJSON(text string) map[string]any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var whole map[string]any
	if err := json.Unmarshal([]byte(trimmed), &whole); err == nil && hasKnownKey(whole) {
		return whole
	}

	for _, pattern := range codeBlockPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(match[1])
			if !strings.HasPrefix(candidate, "{") {
				continue
			}
			end := balancedObjectEnd(candidate)
			if end <= 0 {
				continue
			}
			var parsed map[string]any
			if err := json.Unmarshal([]byte(candidate[:end]), &parsed); err != nil {
				continue
			}
			if hasKnownKey(parsed) {
				return parsed
			}
		}
	}
	return nil
}

// balancedObjectEnd returns the index just past the shortest complete JSON
// object starting at s[0], honoring string quoting and backslash escapes.
// Returns -1 if the braces never balance.
func balancedObjectEnd(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return -1
}

// taskLike reports whether a mapping looks like a completed delegated task.
func taskLike(m map[string]any) bool {
	if m == nil {
		return false
	}
	_, hasArtifacts := m["artifacts"]
	_, hasStatus := m["status"]
	return hasArtifacts || hasStatus
}

func artifactPartText(p map[string]any) string {
	text, _ := p["text"].(string)
	if text == "" {
		return ""
	}
	if kind, ok := p["kind"].(string); ok {
		if kind == "text" {
			return text
		}
		return ""
	}
	return text
}

// ArtifactText returns the first non-empty artifact text nested under a
// task's artifacts[].parts[].
func ArtifactText(task map[string]any) string {
	if task == nil {
		return ""
	}
	artifacts, _ := task["artifacts"].([]any)
	for _, a := range artifacts {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		parts, _ := am["parts"].([]any)
		for _, p := range parts {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text := artifactPartText(pm); strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return ""
}

// EventArtifactText joins all non-empty artifact texts found under an
// event's top-level result envelope, newest task-completion shape.
func EventArtifactText(ev Event) string {
	if ev.Raw == nil {
		return ""
	}
	result, _ := ev.Raw["result"].(map[string]any)
	if result == nil {
		return ""
	}
	artifacts, _ := result["artifacts"].([]any)
	var texts []string
	for _, a := range artifacts {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		parts, _ := am["parts"].([]any)
		for _, p := range parts {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text := artifactPartText(pm); strings.TrimSpace(text) != "" {
				texts = append(texts, text)
			}
		}
	}
	return strings.Join(texts, "\n")
}

// delegatedTask digs the completed task object out of a delegation
// function-response. The runtime nests it under several historical shapes.
func delegatedTask(resp map[string]any) map[string]any {
	if resp == nil {
		return nil
	}
	if taskLike(resp) {
		return resp
	}
	if inner, ok := resp["response"].(map[string]any); ok {
		if result, ok := inner["result"].(map[string]any); ok && taskLike(result) {
			return result
		}
	}
	if result, ok := resp["result"].(map[string]any); ok && taskLike(result) {
		return result
	}
	if root, ok := resp["root"].(map[string]any); ok {
		if result, ok := root["result"].(map[string]any); ok && taskLike(result) {
			return result
		}
		if taskLike(root) {
			return root
		}
	}
	return nil
}
