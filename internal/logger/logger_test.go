package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Errorf("failed: %s", "boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written without verbose: %q", out)
	}
	if !strings.Contains(out, "huff: [INFO] shown 2\n") {
		t.Fatalf("missing info line: %q", out)
	}
	if !strings.Contains(out, "huff: [ERROR] failed: boom\n") {
		t.Fatalf("missing error line: %q", out)
	}
}

func TestVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debugf("tree depth %d", 3)
	if got := buf.String(); got != "huff: [DEBUG] tree depth 3\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}
