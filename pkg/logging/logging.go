package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/go-park/flow/pkg/config"
)

// New builds the logger every component receives as a logrus.FieldLogger.
func New(s config.LogSettings) (*logrus.Logger, error) {
	return NewWithOutput(s, os.Stderr)
}

func NewWithOutput(s config.LogSettings, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	switch s.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	}
	return l, nil
}

// Discard is a logger that drops everything, used when no logger is given.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
