package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestContextHandlerAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	ctx := WithAttrs(context.Background(), slog.String("participant", "chat-1"))
	ctx = WithAttrs(ctx, slog.String("event", "answer"))
	logger.InfoContext(ctx, "handled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["participant"] != "chat-1" || rec["event"] != "answer" {
		t.Fatalf("expected context attrs in record, got %v", rec)
	}
}

func TestWithAttrsDoesNotLeakBetweenBranches(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	base := WithAttrs(context.Background(), slog.String("participant", "chat-1"))
	_ = WithAttrs(base, slog.String("event", "skip"))
	logger.InfoContext(base, "handled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if _, ok := rec["event"]; ok {
		t.Fatalf("attr from sibling context leaked: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("expected fallback to info")
	}
}
