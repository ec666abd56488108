// Package logging configures the process logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options controls where and how much is logged.
type Options struct {
	Level      string // logrus level name, default info
	File       string // optional JSON log file, rolled by size
	MaxSizeMB  int64
	MaxBackups int
}

// Logger is the process logger together with the log file it owns, if any.
type Logger struct {
	*logrus.Logger
	file *rollingFile
}

// New builds a logger printing text to stdout. When File is set every entry
// is also appended to it as JSON through a hook.
func New(opts Options) (*Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	log.SetLevel(level)

	out := &Logger{Logger: log}
	if opts.File != "" {
		f, err := openRollingFile(opts.File, opts.MaxSizeMB*1024*1024, opts.MaxBackups)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.AddHook(&fileHook{file: f, formatter: &logrus.JSONFormatter{}})
		out.file = f
	}
	return out, nil
}

// Close releases the log file. Entries logged afterwards reach stdout only.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fileHook struct {
	file      *rollingFile
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.file.Write(line)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// rollingFile appends to path and, once a write would take it past limit
// bytes, moves it to path.1 (shifting older copies up to path.<keep>) and
// starts over. A limit of zero never rolls.
type rollingFile struct {
	path  string
	limit int64
	keep  int

	mu      sync.Mutex
	f       *os.File
	written int64
}

func openRollingFile(path string, limit int64, keep int) (*rollingFile, error) {
	r := &rollingFile{path: path, limit: limit, keep: keep}
	if err := r.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rollingFile) open(mode int) error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.written = info.Size()
	return nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.limit > 0 && r.written > 0 && r.written+int64(len(p)) > r.limit {
		if err := r.roll(); err != nil {
			return 0, fmt.Errorf("roll %s: %w", r.path, err)
		}
	}

	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// roll closes the live file, shifts the numbered copies and reopens empty.
// Caller holds mu.
func (r *rollingFile) roll() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	r.f = nil

	if r.keep > 0 {
		if err := os.Remove(r.backup(r.keep)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		for i := r.keep - 1; i >= 1; i-- {
			if err := os.Rename(r.backup(i), r.backup(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		if err := os.Rename(r.path, r.backup(1)); err != nil {
			return err
		}
	}
	return r.open(os.O_TRUNC)
}

func (r *rollingFile) backup(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}
