package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.RedirectForTests(&buf)
	defer restore()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: "auth-42"})
	ctx = auth.ContextWithAdmin(ctx, auth.AdminLogin{ID: "admin-7", AuthID: "auth-42"})

	if err := LogEvent(ctx, EventUserApproved, map[string]any{"user_id": "user-1"}); err != nil {
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
	if entry["event"] != EventUserApproved {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor_auth_id"] != "auth-42" || entry["admin_id"] != "admin-7" {
		t.Fatalf("unexpected actor: %v / %v", entry["actor_auth_id"], entry["admin_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["user_id"] != "user-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), " ")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
