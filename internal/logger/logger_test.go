package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "narraitor-test", "debug")

	log.Info().Str("stage", "boot").Msg("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["service"] != "narraitor-test" {
		t.Errorf("expected service tag, got %v", line["service"])
	}
	if line["stage"] != "boot" {
		t.Errorf("expected stage field, got %v", line["stage"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "svc", "warn")

	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	log.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should be written at warn level")
	}
}

func TestNewWithWriter_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "svc", "loud")

	log.Debug().Msg("dropped")
	log.Info().Msg("kept")

	if bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Fatalf("expected exactly one line, got %q", buf.String())
	}
}
