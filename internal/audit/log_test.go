package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	principal := auth.NewPrincipal(&auth.User{ID: "user-42"}, auth.RoleAdmin, nil)
	ctx = auth.ContextWithPrincipal(ctx, principal)

	if err := LogEvent(ctx, "meter.delete", map[string]any{"meter_id": "m-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "meter.delete" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	if entry["role"] != auth.RoleAdmin {
		t.Fatalf("unexpected role: %v", entry["role"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["meter_id"] != "m-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}
