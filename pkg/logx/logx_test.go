package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatChannelLine(t *testing.T) {
	t.Parallel()

	got := formatChannelLine([]byte(`{"level":"info","message":"bot start","user_id":42,"time":"x","caller":"y"}`))
	if !strings.HasPrefix(got, "[INFO] bot start") {
		t.Fatalf("line = %q, want level+message prefix", got)
	}
	if !strings.Contains(got, "- user_id=42") {
		t.Fatalf("line = %q, want user_id field", got)
	}
	if strings.Contains(got, "time=") || strings.Contains(got, "caller=") {
		t.Fatalf("line = %q, noise fields must be dropped", got)
	}
}

func TestFormatChannelLineNonJSON(t *testing.T) {
	t.Parallel()

	if got := formatChannelLine([]byte("  plain text line \n")); got != "plain text line" {
		t.Fatalf("line = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 100); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("x", 200)
	got := truncate(long, 50)
	if len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate len = %d, suffix ok = %v", len(got), strings.HasSuffix(got, "..."))
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	t.Parallel()

	l := Nop()
	l.Info("ignored", String("k", "v"))
	l.With(Int("n", 1)).Error("also ignored")

	var zero Logger
	zero.Warn("zero value must not panic")
	if !zero.IsZero() {
		t.Fatal("zero logger must report IsZero")
	}
	if Nop().IsZero() {
		t.Fatal("Nop logger carries a base and is not zero")
	}
}
