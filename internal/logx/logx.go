// Package logx wires zerolog to a timestamped run log file under the
// logs directory. Every batch run gets one file; component loggers
// tag subsystem output so a single file tells the whole story of a
// run.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger writing JSON lines to a timestamped file inside
// logsDir. The returned closer should be closed when logging is no
// longer needed; the path points at the created file.
func New(logsDir string) (zerolog.Logger, io.Closer, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return zerolog.Nop(), nil, "", fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(logsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, "", fmt.Errorf("open log file: %w", err)
	}

	logger := zerolog.New(file).With().Timestamp().Logger()
	return logger, file, filePath, nil
}

// NewWithConsole tees the run log to an additional writer (usually
// stderr) rendered through the console writer for humans.
func NewWithConsole(logsDir string, console io.Writer) (zerolog.Logger, io.Closer, string, error) {
	logger, closer, path, err := New(logsDir)
	if err != nil {
		return logger, closer, path, err
	}
	if console == nil {
		return logger, closer, path, nil
	}
	pretty := zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	fileWriter := closer.(io.Writer)
	multi := zerolog.MultiLevelWriter(fileWriter, pretty)
	logger = zerolog.New(multi).With().Timestamp().Logger()
	return logger, closer, path, nil
}

// WithComponent tags a logger with a component field.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// Nop returns a disabled logger for callers that do not log.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
