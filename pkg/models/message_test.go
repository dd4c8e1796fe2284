package models

import "testing"

func TestMessageHasToolCalls(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want bool
	}{
		{"assistant with calls", Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1"}}}, true},
		{"assistant without calls", Message{Role: RoleAssistant}, false},
		{"user role ignored", Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "c1"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.HasToolCalls(); got != tc.want {
				t.Errorf("HasToolCalls() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestToolResultPayloadMarshal(t *testing.T) {
	p := ToolResultPayload{IsError: true, Error: "boom"}
	got := p.Marshal()
	want := `{"is_error":true,"error":"boom"}`
	if got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("t1", "c1", "readFile", `{"ok":true}`)
	if msg.Role != RoleTool {
		t.Fatalf("role = %s, want tool", msg.Role)
	}
	if msg.ToolCallID != "c1" || msg.TaskID != "t1" {
		t.Errorf("unexpected message: %+v", msg)
	}
}
