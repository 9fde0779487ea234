package config

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
)

// SetupLogging configures the global logrus logger. The returned closer
// releases the log file and is a no-op when no file is configured.
func SetupLogging(sys SystemConfig) io.Closer {
	writers := []io.Writer{os.Stderr}
	var closer io.Closer = nopCloser{}

	if sys.LogFile != "" {
		maxSize := sys.LogMaxSizeMB
		if maxSize <= 0 {
			maxSize = defaultLogMaxSizeMB
		}
		maxBackups := sys.LogMaxBackups
		if maxBackups <= 0 {
			maxBackups = defaultLogMaxBackups
		}
		rotating := &lumberjack.Logger{
			Filename:   sys.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	logrus.SetLevel(sys.GetLogLevel())
	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
