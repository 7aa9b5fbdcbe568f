// Package logbook keeps the operator-facing record of resolution passes: a
// plain text file with one line per pass, meant to be read by people, next to
// the structured log.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DefaultRetention is how many entries survive a compaction.
const DefaultRetention = 1000

// Entry is one parsed logbook line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %-5s %s", e.Time.UTC().Format(time.RFC3339), string(e.Level), e.Message)
}

// ParseEntry splits a logbook line. Lines that do not carry a timestamp and a
// level come back as an INFO entry holding the raw text.
func ParseEntry(line string) Entry {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) == 2 {
		if ts, err := time.Parse(time.RFC3339, fields[0]); err == nil {
			rest := strings.TrimLeft(fields[1], " ")
			level, msg, _ := strings.Cut(rest, " ")
			switch Level(level) {
			case LevelInfo, LevelWarn, LevelError:
				return Entry{Time: ts, Level: Level(level), Message: strings.TrimSpace(msg)}
			}
		}
	}
	return Entry{Level: LevelInfo, Message: line}
}

// Option customizes a Logbook.
type Option func(*Logbook)

// WithClock injects the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(l *Logbook) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithRetention bounds the file. Once it holds twice the retention, the oldest
// entries are dropped down to the retention. Zero keeps everything.
func WithRetention(entries int) Option {
	return func(l *Logbook) {
		if entries >= 0 {
			l.retention = entries
		}
	}
}

// Logbook appends entries to a text file.
type Logbook struct {
	path      string
	clock     func() time.Time
	retention int

	mu    sync.Mutex
	count int // entries on disk, -1 until counted
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	l := &Logbook{path: path, clock: time.Now, retention: DefaultRetention, count: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry. Failures are swallowed: the logbook is a
// convenience next to the structured log, never a reason to fail a pass.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	entry := Entry{Time: l.clock(), Level: level, Message: strings.TrimSpace(message)}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	_, err = file.WriteString(entry.String() + "\n")
	file.Close()
	if err != nil {
		return
	}
	if l.count < 0 {
		lines, _ := l.readLocked()
		l.count = len(lines)
	} else {
		l.count++
	}
	if l.retention > 0 && l.count >= 2*l.retention {
		l.compactLocked()
	}
}

// Tail returns up to maxLines of the most recent entries together with the
// total number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lines, err := l.readLocked()
	if err != nil {
		return nil, 0
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Entries is Tail with each line parsed.
func (l *Logbook) Entries(maxLines int) ([]Entry, int) {
	lines, total := l.Tail(maxLines)
	out := make([]Entry, len(lines))
	for i, line := range lines {
		out[i] = ParseEntry(line)
	}
	return out, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logbook) readLocked() ([]string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// compactLocked rewrites the file with the newest retention entries.
func (l *Logbook) compactLocked() {
	lines, err := l.readLocked()
	if err != nil {
		return
	}
	if len(lines) > l.retention {
		lines = lines[len(lines)-l.retention:]
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return
	}
	l.count = len(lines)
}
