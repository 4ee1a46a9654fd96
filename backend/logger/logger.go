package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// NewWithLogDir logs to stderr and to a per-day file under dir. When the file
// cannot be opened the logger falls back to stderr only.
func NewWithLogDir(dir string) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(os.Stderr)
	if dir == "" {
		return l
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.Warnf("create log dir %s: %v", dir, err)
		return l
	}
	name := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.Warnf("open log file %s: %v", name, err)
		return l
	}
	l.SetOutput(io.MultiWriter(os.Stderr, file))
	return l
}
