package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithOutputFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "warn")

	logger.Info().Msg("joined room")
	logger.Warn().Str("room", "general").Msg("slow consumer evicted")

	out := buf.String()
	if strings.Contains(out, "joined room") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "slow consumer evicted") || !strings.Contains(out, "general") {
		t.Fatalf("warn line missing: %q", out)
	}
}
