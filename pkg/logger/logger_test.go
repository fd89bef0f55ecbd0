package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: INFO, Output: &buf, Service: "reservations"})

	log.Info("hold acquired", "room_id", "room-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if record[SERVICE] != "reservations" || record["room_id"] != "room-1" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"Error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWith_CarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: DEBUG, Format: TEXT, Output: &buf}).With("reservation_id", "r-1")

	log.Debug("extended")
	if !bytes.Contains(buf.Bytes(), []byte("reservation_id=r-1")) {
		t.Errorf("expected attribute in %q", buf.String())
	}
}
