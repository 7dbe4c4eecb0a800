package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects the handler, level and destination.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	// File, when set, appends to <DataDir>/logs/vibebusiness.log instead of Stderr.
	File    bool
	DataDir string
	Stderr  io.Writer
}

type Logger struct {
	Logger *slog.Logger
	Close  func() error
	Path   string
}

func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// ParseLevel maps a level name onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds the process logger. It never writes to stdout, which the stdio
// transport owns.
func New(opts Options) (Logger, error) {
	nop := Logger{Logger: Nop(), Close: func() error { return nil }}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nop, err
	}

	var w io.Writer = opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	closeFn := func() error { return nil }
	path := ""
	if opts.File {
		logDir := filepath.Join(opts.DataDir, "logs")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nop, err
		}
		path = filepath.Join(logDir, "vibebusiness.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nop, err
		}
		w = file
		closeFn = file.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		closeFn()
		return nop, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return Logger{Logger: slog.New(handler), Close: closeFn, Path: path}, nil
}
