package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/logging"
)

func TestNew_InvalidLevel_DefaultsToInfo(t *testing.T) {
	l := logging.New(logging.Options{Level: "loud"})
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info, got %s", l.GetLevel())
	}
}

func TestNew_JSONFormat(t *testing.T) {
	l := logging.New(logging.Options{Level: "debug", Format: "JSON"})
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", l.Formatter)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug, got %s", l.GetLevel())
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tollgate.log")
	l := logging.New(logging.Options{File: path, Format: "json"})

	l.WithField("lane", "ENTRANCE").Info("gate opened")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"lane":"ENTRANCE"`) {
		t.Errorf("expected lane field in file, got %s", b)
	}
}
