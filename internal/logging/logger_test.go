package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{input: "error", expected: LevelError},
		{input: "WARN", expected: LevelWarn},
		{input: " Info ", expected: LevelInfo},
		{input: "debug", expected: LevelDebug},
		{input: "TRACE", expected: LevelTrace},
		{input: "loud", expected: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Expected level %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestWithPrefixSharesLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger("TEST")
	root.SetOutput(&buf)

	child := root.WithPrefix("installer")
	child.Debug("hidden at info")
	if buf.Len() != 0 {
		t.Fatalf("Expected no output at INFO level, got %q", buf.String())
	}

	root.SetLevel(LevelDebug)
	child.Debug("visible %d", 42)

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] (installer) visible 42") {
		t.Errorf("Unexpected log line: %q", out)
	}
}

func TestNestedPrefix(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger("TEST")
	root.SetOutput(&buf)

	root.WithPrefix("fatfs").WithPrefix("file").Warn("busy")
	if !strings.Contains(buf.String(), "[WARN] (fatfs/file) busy") {
		t.Errorf("Unexpected log line: %q", buf.String())
	}
}
