package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolutions.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("generation=%d resolved", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"generation=2", "generation=3", "generation=4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestLevelsAreRecorded(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "nested", "resolutions.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("thread set changed")
	book.Error("resolution failed: %s", "cyclic dependency")
	lines, total := book.Tail(10)
	if total != 2 {
		t.Fatalf("total lines = %d, want 2", total)
	}
	if !strings.Contains(lines[0], "WARN") || !strings.Contains(lines[1], "ERROR") {
		t.Fatalf("unexpected levels: %v", lines)
	}
}

func TestNilAndEmptyLogbook(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook must be empty")
	}
	empty, err := New(filepath.Join(t.TempDir(), "empty.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	if lines, total := empty.Tail(5); len(lines) != 0 || total != 0 {
		t.Fatalf("missing file must be empty, got %v %d", lines, total)
	}
}

func TestRetentionCompactsOldEntries(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "resolutions.log"), WithRetention(3))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 6; i++ {
		book.Info("generation=%d", i)
	}
	lines, total := book.Tail(10)
	if total != 3 {
		t.Fatalf("total after compaction = %d, want 3 (%v)", total, lines)
	}
	if !strings.Contains(lines[0], "generation=3") || !strings.Contains(lines[2], "generation=5") {
		t.Fatalf("compaction kept the wrong entries: %v", lines)
	}
	book.Info("generation=6")
	if _, total := book.Tail(10); total != 4 {
		t.Fatalf("total after append = %d, want 4", total)
	}
}

func TestEntriesParseLines(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	book, err := New(filepath.Join(t.TempDir(), "resolutions.log"), WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Info("generation=1 resolution=res-1")
	book.Error("resolution res-2 failed: %s", "cyclic dependency")
	entries, total := book.Entries(10)
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	want := []Entry{
		{Time: at, Level: LevelInfo, Message: "generation=1 resolution=res-1"},
		{Time: at, Level: LevelError, Message: "resolution res-2 failed: cyclic dependency"},
	}
	for i := range want {
		if !entries[i].Time.Equal(want[i].Time) || entries[i].Level != want[i].Level || entries[i].Message != want[i].Message {
			t.Fatalf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
	if got := ParseEntry("free text"); got.Level != LevelInfo || got.Message != "free text" {
		t.Fatalf("unexpected fallback entry: %+v", got)
	}
}
