package stream

import "testing"

func TestExtractJSON_WholeTextPayload(t *testing.T) {
	text := `{"properties": [{"property_id": "P1", "price": 1200}]}`

	got := ExtractJSON(text)
	if got == nil {
		t.Fatalf("expected payload, got nil")
	}
	if _, ok := got["properties"]; !ok {
		t.Fatalf("expected properties key, got %v", got)
	}
}

func TestExtractJSON_FencedBlockWithNestedBraces(t *testing.T) {
	text := "Here are some options:\n\n```json\n" +
		`{"jobs": [{"job_id": "J1", "salary": {"min": 50000, "max": 70000}}]}` +
		"\n```\n\nLet me know what you think."

	got := ExtractJSON(text)
	if got == nil {
		t.Fatalf("expected payload, got nil")
	}
	jobs, ok := got["jobs"].([]any)
	if !ok || len(jobs) != 1 {
		t.Fatalf("expected one job, got %v", got["jobs"])
	}
}

func TestExtractJSON_GenericFence(t *testing.T) {
	text := "```\n{\"properties\": []}\n```"
	if got := ExtractJSON(text); got == nil {
		t.Fatalf("expected payload from generic fence")
	}
}

func TestExtractJSON_ProseIsNil(t *testing.T) {
	cases := []string{
		"",
		"Just a plain answer with no data.",
		"Braces in prose {like this} are not JSON.",
		"```json\n{\"unknown_key\": 1}\n```", // valid JSON, wrong discriminator
		"```json\n{broken\n```",
	}
	for _, text := range cases {
		if got := ExtractJSON(text); got != nil {
			t.Fatalf("expected nil for %q, got %v", text, got)
		}
	}
}

func TestBalancedObjectEnd(t *testing.T) {
	s := `{"a": "brace } in string", "b": {"c": 1}} trailing`
	end := balancedObjectEnd(s)
	if end <= 0 {
		t.Fatalf("expected balanced end, got %d", end)
	}
	if s[:end] != `{"a": "brace } in string", "b": {"c": 1}}` {
		t.Fatalf("unexpected object: %q", s[:end])
	}

	if end := balancedObjectEnd(`{"never": "closed"`); end != -1 {
		t.Fatalf("expected -1 for unbalanced input, got %d", end)
	}
}

func TestArtifactText(t *testing.T) {
	task := map[string]any{
		"artifacts": []any{
			map[string]any{"parts": []any{
				map[string]any{"kind": "data", "text": "skipped"},
				map[string]any{"kind": "text", "text": "the answer"},
			}},
		},
	}
	if got := ArtifactText(task); got != "the answer" {
		t.Fatalf("expected first text part, got %q", got)
	}

	// a part without kind but with text still counts
	task = map[string]any{
		"artifacts": []any{
			map[string]any{"parts": []any{map[string]any{"text": "untyped"}}},
		},
	}
	if got := ArtifactText(task); got != "untyped" {
		t.Fatalf("expected untyped text part, got %q", got)
	}

	if got := ArtifactText(nil); got != "" {
		t.Fatalf("expected empty for nil task, got %q", got)
	}
}

func TestDelegatedTask_Shapes(t *testing.T) {
	task := map[string]any{"artifacts": []any{}, "status": "completed"}

	shapes := []map[string]any{
		task,
		{"response": map[string]any{"result": task}},
		{"result": task},
		{"root": map[string]any{"result": task}},
		{"root": task},
	}
	for i, shape := range shapes {
		if got := delegatedTask(shape); got == nil {
			t.Fatalf("shape %d: expected task, got nil", i)
		}
	}

	if got := delegatedTask(map[string]any{"name": "not a task"}); got != nil {
		t.Fatalf("expected nil for non-task response, got %v", got)
	}
	if got := delegatedTask(nil); got != nil {
		t.Fatalf("expected nil for nil response, got %v", got)
	}
}
