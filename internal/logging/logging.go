// Package logging builds the gateway's structured logger: a JSON slog.Handler
// writing to stdout and a midnight-rotating file under Config.Log.Dir, with
// errors additionally duplicated to a separate error-only file. Midnight
// rotation with a fixed backup count and a dedicated error log; no library
// available here covers rotate-at-midnight file logging, so this is a
// deliberate standard-library implementation (see DESIGN.md).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// maxBackups bounds how many rotated-out log files of each kind are kept.
const maxBackups = 14

// rotatingFile is an io.Writer over a single log file that rotates onto a
// date-stamped name the first time Write is called on a new calendar day.
type rotatingFile struct {
	mu         sync.Mutex
	dir        string
	prefix     string
	file       *os.File
	currentDay string
}

func newRotatingFile(dir, prefix string) (*rotatingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	r := &rotatingFile{dir: dir, prefix: prefix}
	if err := r.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return r.file.Write(p)
}

// rotateIfNeeded must be called with r.mu held. On the first write of a new
// calendar day, it renames the previous file onto a date-stamped backup
// name and opens a fresh stable-named file, then prunes backups beyond
// maxBackups — the Go equivalent of TimedRotatingFileHandler's midnight
// rollover.
func (r *rotatingFile) rotateIfNeeded() error {
	day := time.Now().Format("2006-01-02")
	if day == r.currentDay && r.file != nil {
		return nil
	}

	path := filepath.Join(r.dir, fmt.Sprintf("%s.log", r.prefix))

	if r.file != nil {
		_ = r.file.Close()
		backup := filepath.Join(r.dir, fmt.Sprintf("%s-%s.log", r.prefix, r.currentDay))
		_ = os.Rename(path, backup)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open %s: %w", path, err)
	}

	r.file = f
	r.currentDay = day
	r.pruneBackups()
	return nil
}

// pruneBackups removes this prefix's date-stamped backups beyond
// maxBackups, oldest first.
func (r *rotatingFile) pruneBackups() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, r.prefix+"-") && strings.HasSuffix(name, ".log") {
			backups = append(backups, name)
		}
	}
	if len(backups) <= maxBackups {
		return
	}
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-maxBackups] {
		_ = os.Remove(filepath.Join(r.dir, name))
	}
}

// errorOnlyHandler wraps a slog.Handler so only records at slog.LevelError
// or above reach it, used to feed the separate error log file.
type errorOnlyHandler struct {
	slog.Handler
}

func (h errorOnlyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError && h.Handler.Enabled(ctx, level)
}

// teeHandler fans a record out to two handlers: the primary (console + app
// log) and the error-only handler (error log file).
type teeHandler struct {
	primary slog.Handler
	errOnly slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.primary.Handle(ctx, r); err != nil {
		return err
	}
	if h.errOnly.Enabled(ctx, r.Level) {
		return h.errOnly.Handle(ctx, r.Clone())
	}
	return nil
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: h.primary.WithAttrs(attrs), errOnly: h.errOnly.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: h.primary.WithGroup(name), errOnly: h.errOnly.WithGroup(name)}
}

// New builds the gateway's logger: JSON records to stdout and dir/app.log,
// with records at error level or above duplicated to dir/error.log.
func New(dir, level string) (*slog.Logger, error) {
	appFile, err := newRotatingFile(dir, "app")
	if err != nil {
		return nil, err
	}
	errFile, err := newRotatingFile(dir, "error")
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	primary := slog.NewJSONHandler(io.MultiWriter(os.Stdout, appFile), opts)
	errOnly := errorOnlyHandler{slog.NewJSONHandler(errFile, &slog.HandlerOptions{Level: slog.LevelError})}

	return slog.New(teeHandler{primary: primary, errOnly: errOnly}), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
