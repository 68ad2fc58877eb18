package stream

import (
	"strings"
	"time"
)

// HistoryMeta aggregates per-session metadata collected while replaying a
// stored event log.
type HistoryMeta struct {
	Author       string         `json:"author,omitempty"`
	ModelVersion string         `json:"model_version,omitempty"`
	Usage        map[string]any `json:"usage,omitempty"`
	// ResponseTime is the estimated turn latency in seconds: the span
	// between the first and last artifact-bearing events when artifacts
	// exist, else the full first-to-last event span.
	ResponseTime *float64 `json:"response_time,omitempty"`
}

// ReconstructHistory replays a remote session's stored event log, oldest
// first, through the same normalization and extraction chain as a live turn
// and rebuilds the ordered transcript. Within one event, a final textual
// answer from the model wins over artifact content bundled alongside it; the
// artifact is only a fallback.
func ReconstructHistory(events []Event) ([]Message, HistoryMeta) {
	var (
		history  []Message
		meta     HistoryMeta
		firstTS  *time.Time
		lastTS   *time.Time
		firstArt *time.Time
		lastArt  *time.Time
	)

	for _, ev := range events {
		if ev.Timestamp != nil {
			if firstTS == nil {
				firstTS = ev.Timestamp
			}
			lastTS = ev.Timestamp
		}
		if meta.Author == "" && ev.Author != "" && ev.Author != RoleUser {
			meta.Author = ev.Author
		}
		if meta.ModelVersion == "" && ev.ModelVersion != "" {
			meta.ModelVersion = ev.ModelVersion
		}
		if meta.Usage == nil && ev.Usage != nil {
			meta.Usage = ev.Usage
		}

		var (
			calls     []Message
			texts     []Message
			artifacts []Message
		)

		for _, part := range ev.Parts {
			switch part.Kind {
			case PartText:
				if strings.TrimSpace(part.Text) == "" {
					continue
				}
				if ev.Role == RoleUser && (ev.Author == RoleUser || ev.Author == "") {
					texts = append(texts, Message{
						Role:      RoleUser,
						Content:   strings.TrimSpace(part.Text),
						Timestamp: ev.Timestamp,
					})
					continue
				}
				msg := NewAgentResponse(part.Text, ExtractJSON(part.Text), nil)
				msg.Timestamp = ev.Timestamp
				texts = append(texts, msg)

			case PartFunctionCall:
				name := ""
				args := map[string]any{}
				if part.Call != nil {
					name = part.Call.Name
					if part.Call.Args != nil {
						args = part.Call.Args
					}
				}
				var msg Message
				if delegationCalls[name] {
					msg = delegationMessage(args)
				} else {
					msg = toolCallMessage(name)
				}
				msg.Timestamp = ev.Timestamp
				calls = append(calls, msg)

			case PartFunctionResponse:
				task := delegatedTask(part.Response)
				if task == nil {
					continue
				}
				text := ArtifactText(task)
				if strings.TrimSpace(text) == "" {
					continue
				}
				if ev.Timestamp != nil {
					if firstArt == nil {
						firstArt = ev.Timestamp
					}
					lastArt = ev.Timestamp
				}
				msg := NewAgentResponse(text, ExtractJSON(text), nil)
				msg.Timestamp = ev.Timestamp
				artifacts = append(artifacts, msg)
			}
		}

		history = append(history, calls...)
		if len(texts) > 0 {
			history = append(history, texts...)
		} else {
			history = append(history, artifacts...)
		}
	}

	if span := timeSpan(firstArt, lastArt); span != nil {
		meta.ResponseTime = span
	} else if span := timeSpan(firstTS, lastTS); span != nil {
		meta.ResponseTime = span
	}

	return history, meta
}

func timeSpan(first, last *time.Time) *float64 {
	if first == nil || last == nil {
		return nil
	}
	s := last.Sub(*first).Seconds()
	if s < 0 {
		return nil
	}
	return &s
}
