package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod", "warn")
	l.Info().Msg("hidden")
	l.Warn().Str("path", "a.csv").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"path":"a.csv"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected JSON warn line, got %s", out)
	}

	buf.Reset()
	dev := newLogger(&buf, "dev", "bogus")
	dev.Info().Msg("console")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("dev logger should not emit JSON: %s", buf.String())
	}
}
