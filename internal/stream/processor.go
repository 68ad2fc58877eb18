package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// delegationCalls are the routing agent's delegation tool names. Both names
// occur in the wild depending on routing path.
var delegationCalls = map[string]bool{
	"send_task":    true,
	"send_message": true,
}

type procState int

const (
	stateNormal procState = iota
	// stateAwaitingDelegationResult suppresses the verbose envelope of the
	// function-response that immediately follows a delegation call; only its
	// artifact is worth surfacing.
	stateAwaitingDelegationResult
)

// ProcessEvent turns one normalized event's parts, in order, into zero or
// more user-facing messages. No I/O.
func ProcessEvent(ev Event) []Message {
	var out []Message
	state := stateNormal

	for _, part := range ev.Parts {
		switch part.Kind {
		case PartFunctionCall:
			name := ""
			args := map[string]any{}
			if part.Call != nil {
				name = part.Call.Name
				if part.Call.Args != nil {
					args = part.Call.Args
				}
			}
			if delegationCalls[name] {
				out = append(out, delegationMessage(args))
				state = stateAwaitingDelegationResult
			} else {
				out = append(out, toolCallMessage(name))
			}

		case PartFunctionResponse:
			if state == stateAwaitingDelegationResult {
				state = stateNormal
				task := delegatedTask(part.Response)
				if task == nil {
					continue
				}
				text := ArtifactText(task)
				if strings.TrimSpace(text) == "" {
					continue
				}
				out = append(out, NewAgentResponse(text, ExtractJSON(text), nil))
			} else {
				out = append(out, Message{
					Role:     RoleAssistant,
					Content:  "🛠️ Tool result received",
					Metadata: map[string]any{"title": titleToolResult},
				})
			}

		case PartText:
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			out = append(out, NewAgentResponse(part.Text, ExtractJSON(part.Text), nil))

		default:
			out = append(out, unknownPartMessage(part.Raw))
		}
	}
	return out
}

func delegationMessage(args map[string]any) Message {
	agentName, _ := args["agent_name"].(string)
	if agentName == "" {
		agentName = "Unknown Agent"
	}
	task, _ := args["task"].(string)
	return Message{
		Role:     RoleAssistant,
		Content:  fmt.Sprintf("🤖 **%s**\n\n%s", agentName, task),
		Metadata: map[string]any{"title": titleDelegating},
	}
}

func toolCallMessage(name string) Message {
	return Message{
		Role:     RoleAssistant,
		Content:  fmt.Sprintf("🛠️ Calling %s...", displayName(name)),
		Metadata: map[string]any{"title": titleToolCall},
	}
}

// unknownPartMessage renders an unrecognized part verbatim instead of
// dropping it silently.
func unknownPartMessage(raw map[string]any) Message {
	dump, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		dump = []byte(fmt.Sprintf("%v", raw))
	}
	return Message{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("Unknown agent response part:\n\n```json\n%s\n```", dump),
	}
}

func displayName(funcName string) string {
	words := strings.Split(funcName, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
