package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("meal reminder sent", "guild", "-1001")

	data, err := os.ReadFile(filepath.Join(dir, "tildy.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "meal reminder sent") {
		t.Errorf("log file = %q", data)
	}
}

func TestNewLevel(t *testing.T) {
	l, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if l.GetLevel() != log.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
	l, err = New(Config{Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if l.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}
}

func TestCronLoggerError(t *testing.T) {
	var sb strings.Builder
	l := log.New(&sb)
	CronLogger{L: l}.Error(errors.New("boom"), "panic", "job", "sweep")
	if !strings.Contains(sb.String(), "boom") || !strings.Contains(sb.String(), "sweep") {
		t.Errorf("output = %q", sb.String())
	}
}
