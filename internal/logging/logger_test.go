package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestInitJSONFormat(t *testing.T) {
	defer Init(os.Stderr, "info", "text")

	var buf bytes.Buffer
	if err := Init(&buf, "debug", "json"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Debug("hello", "profile", "p1")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["profile"] != "p1" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestInitLevelFilters(t *testing.T) {
	defer Init(os.Stderr, "info", "text")

	var buf bytes.Buffer
	if err := Init(&buf, "warn", "logfmt"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info must be filtered at warn level, got %q", buf.String())
	}
	Warn("kept")
	if !bytes.Contains(buf.Bytes(), []byte("kept")) {
		t.Errorf("warn line missing: %q", buf.String())
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
