package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options picks the level, output format and optional rotated log file.
type Options struct {
	Level  string // debug | info | warn | error; invalid values fall back to info
	Format string // "text" (default) or "json"
	File   string // empty disables file output

	MaxSizeMB  int // rotation size, default 10
	MaxBackups int // default 5
}

// New builds a logrus logger writing to stdout and, when File is set, to a
// lumberjack-rotated file.
func New(opt Options) *logrus.Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(strings.TrimSpace(opt.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(opt.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if opt.File != "" {
		maxSize := opt.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		backups := opt.MaxBackups
		if backups <= 0 {
			backups = 5
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    maxSize,
			MaxBackups: backups,
		})
	}
	l.SetOutput(out)

	return l
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}
