package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("json"), WithOutput(&buf), WithLevel(DebugLevel)).
		With(Component("txn"))
	l.Info("committed", Str("log", "audit"), Uint64("version", 3), Err(errors.New("boom")))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["message"] != "committed" || line["component"] != "txn" || line["log"] != "audit" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["error"] != "boom" || line["level"] != "info" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("json"), WithOutput(&buf), WithLevel(WarnLevel))
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.SetLevel(InfoLevel)
	l.Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info line after SetLevel")
	}
}

func TestParseLevelAndApplyConfig(t *testing.T) {
	if lvl, err := ParseLevel("WARN"); err != nil || lvl != WarnLevel {
		t.Fatalf("parse warn: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := ApplyConfig(&Config{Level: "debug", Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	l, err := ApplyConfig(&Config{Level: "debug", Format: "json"})
	if err != nil || l.GetLevel() != DebugLevel {
		t.Fatalf("apply config: %v", err)
	}
}
