package analytics

// In this file: the day-partitioned JSONL writer and the snapshot reader.

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Logger appends events to day-partitioned log files.  It is safe for
// concurrent use; each entry is written as a single line so that concurrent
// appends interleave at line granularity only.
type Logger struct {
	dir string
	lg  *slog.Logger
	now func() time.Time

	mu sync.Mutex
}

// NewLogger creates the log directory if needed and returns a logger
// writing into it.
func NewLogger(dir string, lg *slog.Logger) (*Logger, error) {
	if lg == nil {
		lg = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("analytics: create log dir: %w", err)
	}
	return &Logger{dir: dir, lg: lg, now: time.Now}, nil
}

// Log appends a single event.  It never fails the caller: write errors are
// reported through the logger and otherwise swallowed, as losing one
// analytics line must not affect request handling.
func (l *Logger) Log(ctx context.Context, event string, fields map[string]any) {
	entry := Entry{Timestamp: l.now().UTC(), Event: event, Fields: fields}
	data, err := json.Marshal(entry)
	if err != nil {
		l.lg.ErrorContext(ctx, "analytics: marshal entry", "event", event, "error", err)
		return
	}
	l.lg.InfoContext(ctx, "analytics", "event", event)

	name := filepath.Join(l.dir, entry.Timestamp.Format(time.DateOnly)+".log")

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.lg.ErrorContext(ctx, "analytics: open log file", "file", name, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		l.lg.ErrorContext(ctx, "analytics: append entry", "file", name, "error", err)
	}
}

// Recent returns a snapshot of the entries logged over the last days
// calendar days (including today), newest first.  Malformed lines are
// skipped rather than failing the read.
func (l *Logger) Recent(days int) ([]Entry, error) {
	var entries []Entry
	today := l.now().UTC()
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		name := filepath.Join(l.dir, day.Format(time.DateOnly)+".log")
		ee, err := readLogFile(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		entries = append(entries, ee...)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(name string) ([]Entry, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// Torn or corrupt line: skip it, the rest of the file is
			// still usable.
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("analytics: read %s: %w", name, err)
	}
	return entries, nil
}
