package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File enables a rotating log file. Empty means Fallback.
	File string
	// Fallback receives logs when File is empty. Nil discards them.
	Fallback io.Writer
	Component string
}

// New builds a logger. The returned closer releases the log file, if any.
func New(o Options) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	level := logrus.InfoLevel
	if s := strings.TrimSpace(o.Level); s != "" {
		lv, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = lv
	}
	l.SetLevel(level)

	var closer io.Closer = nopCloser{}
	switch {
	case strings.TrimSpace(o.File) != "":
		if err := os.MkdirAll(filepath.Dir(o.File), 0o700); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		l.SetOutput(lj)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		closer = lj
	case o.Fallback != nil:
		l.SetOutput(o.Fallback)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetOutput(io.Discard)
	}
	if o.Component != "" {
		l.AddHook(componentHook(o.Component))
	}
	return l, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type componentHook string

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = string(h)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
