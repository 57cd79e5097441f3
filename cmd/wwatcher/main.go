// Package main is the entry point for the wwatcher alert research CLI.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"
)

func init() {
	// Volumes are printed as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// setupLogger builds the process logger. Logs go to stderr so stdout stays
// machine readable, or to a rotating file when logFile is set.
func setupLogger(levelStr, logFile string, stderr io.Writer) (*slog.Logger, io.Closer) {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		w, closer = rotating, rotating
	}

	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler), closer
}
