package chat

import "testing"

func TestParseToolArgsJSON(t *testing.T) {
	args := parseToolArgs(`{"file":"data/sales.csv","x":"Date"}`)
	if args["file"] != "data/sales.csv" {
		t.Fatalf("expected file data/sales.csv, got %#v", args["file"])
	}
	if args["x"] != "Date" {
		t.Fatalf("expected x Date, got %#v", args["x"])
	}
}

func TestParseToolArgsInvalidJSONFallsBackToRaw(t *testing.T) {
	raw := `{"file":`
	args := parseToolArgs(raw)
	if args["raw"] != raw {
		t.Fatalf("expected raw fallback, got %#v", args)
	}
}

func TestParseToolArgsEmpty(t *testing.T) {
	args := ToolCall{Arguments: "  "}.Args()
	if args == nil || len(args) != 0 {
		t.Fatalf("expected empty map, got %#v", args)
	}
}

func TestCloneHistoryDoesNotAlias(t *testing.T) {
	orig := []Message{{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "profile"}}}}
	cp := CloneHistory(orig)
	cp[0].ToolCalls[0].Name = "chart"
	if orig[0].ToolCalls[0].Name != "profile" {
		t.Fatalf("clone aliases tool calls")
	}
}

func TestLastAssistant(t *testing.T) {
	h := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "first"},
		{Role: RoleTool, Content: "x"},
		{Role: RoleAssistant, Content: "second"},
	}
	got, ok := LastAssistant(h)
	if !ok || got != "second" {
		t.Fatalf("expected second, got %q ok=%v", got, ok)
	}
	if _, ok := LastAssistant(h[:1]); ok {
		t.Fatalf("expected no assistant message")
	}
}
