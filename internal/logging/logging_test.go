package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "tilenotes.log")
	l, flush, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("draft saved", zap.String("stream", "kabc"))
	l.Debug("hidden")
	flush()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), b)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["message"] != "draft saved" || entry["stream"] != "kabc" || entry["level"] != "INFO" {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestNew_VerboseConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, flush, err := New(Options{Console: &buf, Verbose: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("dialing node")
	flush()
	if !strings.Contains(buf.String(), "dialing node") {
		t.Fatalf("console missing debug line: %q", buf.String())
	}
}

func TestNew_NoSinksIsNop(t *testing.T) {
	t.Parallel()

	l, flush, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer flush()
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Fatalf("expected nop logger")
	}
}

func TestNew_FlushClosesLogFile(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("no /proc/self/fd")
	}
	path := filepath.Join(t.TempDir(), "tilenotes.log")
	l, flush, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("opened")
	if openFDs(t, path) == 0 {
		t.Fatalf("expected the log file to be open after a write")
	}
	flush()
	flush()
	if n := openFDs(t, path); n != 0 {
		t.Fatalf("log file still open after flush (%d descriptors)", n)
	}
}

func openFDs(t *testing.T, path string) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("read fds: %v", err)
	}
	n := 0
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err == nil && target == path {
			n++
		}
	}
	return n
}
