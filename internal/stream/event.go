// Package stream turns the remote agent runtime's loosely shaped event
// streams into the stable message list served by the chat API.
package stream

import (
	"encoding/json"
	"math"
	"time"
)

type PartKind int

const (
	PartText PartKind = iota
	PartFunctionCall
	PartFunctionResponse
	PartUnknown
)

type FunctionCall struct {
	Name string
	Args map[string]any
}

// Part is one unit of an event's content. Exactly one interpretation
// applies per part; anything unrecognized is preserved in Raw.
type Part struct {
	Kind     PartKind
	Text     string
	Call     *FunctionCall
	Response map[string]any
	Raw      map[string]any
}

type Event struct {
	Author       string
	Role         string
	Parts        []Part
	Timestamp    *time.Time
	ModelVersion string
	Usage        map[string]any

	// Raw keeps the full mapping for envelope-level lookups
	// (result.artifacts lives outside content.parts).
	Raw map[string]any
}

// Mapper is implemented by event values that can dump themselves to a
// canonical mapping.
type Mapper interface {
	AsMap() map[string]any
}

// Normalize converts an event of unknown concrete shape into a canonical
// Event. It never fails; unrecoverable input yields an Event with no parts.
func Normalize(v any) Event {
	switch ev := v.(type) {
	case Event:
		return ev
	case map[string]any:
		return eventFromMap(ev)
	case Mapper:
		return eventFromMap(ev.AsMap())
	case json.RawMessage:
		return eventFromJSON(ev)
	case []byte:
		return eventFromJSON(ev)
	case string:
		return eventFromJSON([]byte(ev))
	default:
		// last resort: round-trip through JSON for attribute-bearing values
		b, err := json.Marshal(v)
		if err != nil {
			return Event{}
		}
		return eventFromJSON(b)
	}
}

func eventFromJSON(b []byte) Event {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return Event{}
	}
	return eventFromMap(m)
}

func eventFromMap(m map[string]any) Event {
	if m == nil {
		return Event{}
	}
	ev := Event{
		Raw:          m,
		Author:       stringField(m, "author"),
		ModelVersion: stringField(m, "model_version", "modelVersion"),
	}
	if u, ok := anyField(m, "usage_metadata", "usageMetadata").(map[string]any); ok {
		ev.Usage = u
	}
	if ts, ok := anyField(m, "timestamp").(float64); ok {
		sec, frac := math.Modf(ts)
		t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		ev.Timestamp = &t
	}

	content, _ := m["content"].(map[string]any)
	if content != nil {
		ev.Role = stringField(content, "role")
		if rawParts, ok := content["parts"].([]any); ok {
			for _, rp := range rawParts {
				pm, ok := rp.(map[string]any)
				if !ok {
					ev.Parts = append(ev.Parts, Part{Kind: PartUnknown, Raw: map[string]any{"value": rp}})
					continue
				}
				ev.Parts = append(ev.Parts, partFromMap(pm))
			}
		}
	}
	return ev
}

func partFromMap(pm map[string]any) Part {
	if fc, ok := anyField(pm, "function_call", "functionCall").(map[string]any); ok {
		call := &FunctionCall{Name: stringField(fc, "name")}
		if args, ok := fc["args"].(map[string]any); ok {
			call.Args = args
		}
		return Part{Kind: PartFunctionCall, Call: call, Raw: pm}
	}
	if fr, ok := anyField(pm, "function_response", "functionResponse").(map[string]any); ok {
		return Part{Kind: PartFunctionResponse, Response: fr, Raw: pm}
	}
	if text, ok := pm["text"].(string); ok {
		return Part{Kind: PartText, Text: text, Raw: pm}
	}
	return Part{Kind: PartUnknown, Raw: pm}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func anyField(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
