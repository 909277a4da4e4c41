package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info().Msg("hidden")
	l.Warn().Str("account", "0xabc").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %s", out)
	}
	if !strings.Contains(out, `"account":"0xabc"`) {
		t.Fatalf("expected structured field: %s", out)
	}
}

func TestNewWithWriter_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "loud")

	l.Debug().Msg("debug")
	l.Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, `"message":"debug"`) || !strings.Contains(out, `"message":"info"`) {
		t.Fatalf("expected info level fallback: %s", out)
	}
}
