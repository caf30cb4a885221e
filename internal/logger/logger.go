// Package logger holds the process logger of the memkit tools.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L discards everything until Init enables it.
var L = discard()

// file is the open log file, if logging goes to one.
var file *os.File

const (
	logPrefix     = "memctl-"
	logSuffix     = ".log"
	dateLayout    = "2006-01-02"
	retentionDays = 14
)

// Options configures Init.
type Options struct {
	Enabled bool       // false discards all output
	Writer  io.Writer  // text output to Writer instead of a file
	LogDir  string     // default ~/.memkit/logs
	Level   slog.Level // default LevelInfo
	JSON    bool       // JSON records on Writer; files are always JSON
}

// Init replaces L. It is not safe to call concurrently with logging.
func Init(opts Options) error {
	Close()
	if !opts.Enabled {
		L = discard()
		return nil
	}
	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}

	if opts.Writer != nil {
		if opts.JSON {
			L = slog.New(slog.NewJSONHandler(opts.Writer, hopts))
		} else {
			L = slog.New(slog.NewTextHandler(opts.Writer, hopts))
		}
		return nil
	}

	dir := opts.LogDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".memkit", "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	pruneLogs(dir, time.Now())

	name := filepath.Join(dir, logPrefix+time.Now().Format(dateLayout)+logSuffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	L = slog.New(slog.NewJSONHandler(f, hopts))
	return nil
}

// Close flushes and closes the log file, if any, and discards further output.
func Close() {
	if file == nil {
		return
	}
	_ = file.Close()
	file = nil
	L = discard()
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pruneLogs removes memctl logs dated more than retentionDays before now.
func pruneLogs(dir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, logPrefix), logSuffix))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
