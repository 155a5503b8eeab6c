// Package logging builds the per-run logrus logger: human-readable lines on
// the console and JSON lines in a log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	// Console receives text output; nil disables it.
	Console io.Writer
	Verbose bool
	Quiet   bool
	// FilePath is appended to as JSON at debug level; empty disables it.
	FilePath string
}

// DefaultFilePath is $XDG_CACHE_HOME/dotgrab/dotgrab.log or the platform
// equivalent.
func DefaultFilePath() string {
	d, err := os.UserCacheDir()
	if err != nil || d == "" {
		return ""
	}
	return filepath.Join(d, "dotgrab", "dotgrab.log")
}

// Logger owns the open log file.
type Logger struct {
	*log.Logger
	file *os.File
}

func New(opts Options) (*Logger, error) {
	l := log.New()
	l.SetOutput(io.Discard)
	l.SetLevel(log.DebugLevel)

	out := &Logger{Logger: l}

	if opts.Console != nil && !opts.Quiet {
		level := log.InfoLevel
		if opts.Verbose {
			level = log.DebugLevel
		}
		l.AddHook(&writerHook{
			w:         opts.Console,
			formatter: &log.TextFormatter{FullTimestamp: true, DisableQuote: true},
			levels:    levelsUpTo(level),
		})
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		out.file = f
		l.AddHook(&writerHook{
			w:         f,
			formatter: &log.JSONFormatter{},
			levels:    log.AllLevels,
		})
	}
	return out, nil
}

// Entry returns a logger tagged with the run id and component.
func (l *Logger) Entry(runID, component string) *log.Entry {
	e := log.NewEntry(l.Logger).WithField("component", component)
	if runID != "" {
		e = e.WithField("run_id", runID)
	}
	return e
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

type writerHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter log.Formatter
	levels    []log.Level
}

func (h *writerHook) Levels() []log.Level { return h.levels }

func (h *writerHook) Fire(e *log.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}

func levelsUpTo(top log.Level) []log.Level {
	var out []log.Level
	for _, lv := range log.AllLevels {
		if lv <= top {
			out = append(out, lv)
		}
	}
	return out
}
