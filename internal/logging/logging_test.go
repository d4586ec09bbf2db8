package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Writer: &buf})

	log.With(String("stage", "fit")).Info(context.Background(), "fit complete",
		Int("evaluations", 42),
		Float("chisqr", 1.5),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}

	if entry["msg"] != "fit complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["stage"] != "fit" {
		t.Errorf("stage = %v", entry["stage"])
	}
	if entry["evaluations"] != float64(42) {
		t.Errorf("evaluations = %v", entry["evaluations"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestNoop(t *testing.T) {
	log := OrNoop(nil)
	log.With(String("k", "v")).Error(context.Background(), "dropped")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EPISIM_LOG_LEVEL", "warn")
	t.Setenv("EPISIM_LOG_FORMAT", "json")

	cfg := ConfigFromEnv()
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Fatalf("got level=%q format=%q", cfg.Level, cfg.Format)
	}

	var buf bytes.Buffer
	cfg.Writer = &buf
	log := New(cfg)
	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, "kept") {
		t.Errorf("expected a json warn line, got %q", out)
	}
}
