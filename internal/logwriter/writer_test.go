package logwriter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestWriteBelowThresholdDefersUntilClose(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "/logs/a_log.txt", 1<<20)
	if err := fs.MkdirAll("/logs", 0755); err != nil {
		t.Fatal(err)
	}

	const n = 25
	for i := 0; i < n; i++ {
		if err := w.Write(fmt.Sprintf("record-%d", i)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	if got := w.Stats().Flushes; got != 0 {
		t.Errorf("Flushes before Close = %d, want 0", got)
	}
	if exists, _ := afero.Exists(fs, "/logs/a_log.txt"); exists {
		t.Error("file should not exist before Close")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := readLines(t, fs, "/logs/a_log.txt")
	if len(lines) != n {
		t.Fatalf("file has %d lines, want %d", len(lines), n)
	}
	for i, line := range lines {
		if want := fmt.Sprintf("record-%d", i); line != want {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
	if got := w.Stats().Flushes; got != 1 {
		t.Errorf("Flushes after Close = %d, want 1", got)
	}
}

func TestWriteTriggersFlushAtThreshold(t *testing.T) {
	fs := afero.NewMemMapFs()
	// each record is 10 bytes with its terminator
	w := New(fs, "/a_log.txt", 30)

	for i := 0; i < 2; i++ {
		if err := w.Write("123456789"); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if got := w.Stats().Flushes; got != 0 {
		t.Fatalf("Flushes = %d after 20 bytes, want 0", got)
	}

	if err := w.Write("123456789"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	stats := w.Stats()
	if stats.Flushes != 1 {
		t.Errorf("Flushes = %d after reaching threshold, want 1", stats.Flushes)
	}
	if stats.BufferedBytes != 0 || stats.BufferedRecords != 0 {
		t.Errorf("buffer not cleared: %+v", stats)
	}
	if lines := readLines(t, fs, "/a_log.txt"); len(lines) != 3 {
		t.Errorf("file has %d lines, want 3", len(lines))
	}
}

func TestFlushAppendsWholeRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a_log.txt", []byte("existing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := New(fs, "/a_log.txt", 16)
	records := []string{"1700000000.5;20;18;25;0.0", "1700000005.5;-1;-1;-1;1.0", "x"}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := readLines(t, fs, "/a_log.txt")
	want := append([]string{"existing"}, records...)
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCloseWithEmptyBufferDoesNotTouchFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "/a_log.txt", 0)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if exists, _ := afero.Exists(fs, "/a_log.txt"); exists {
		t.Error("Close on empty buffer created the file")
	}
	if w.threshold != DefaultThreshold {
		t.Errorf("threshold = %d, want default %d", w.threshold, DefaultThreshold)
	}
}

func TestFailedFlushRetainsRecords(t *testing.T) {
	base := afero.NewMemMapFs()
	ro := afero.NewReadOnlyFs(base)
	w := New(ro, "/a_log.txt", 10)

	if err := w.Write("123456789"); err == nil {
		t.Fatal("Write() on read-only fs should report the flush error")
	}

	stats := w.Stats()
	if stats.FailedFlushes != 1 {
		t.Errorf("FailedFlushes = %d, want 1", stats.FailedFlushes)
	}
	if stats.BufferedRecords != 1 {
		t.Errorf("BufferedRecords = %d, want 1", stats.BufferedRecords)
	}

	// the retained record lands once the filesystem is writable again
	w.fs = base
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if lines := readLines(t, base, "/a_log.txt"); len(lines) != 1 || lines[0] != "123456789" {
		t.Errorf("file lines = %q, want [123456789]", lines)
	}
}

func TestFailedFlushBoundsRetainedBytes(t *testing.T) {
	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())
	w := New(ro, "/a_log.txt", 10)
	w.SetMaxRetained(30)

	for i := 0; i < 10; i++ {
		_ = w.Write(fmt.Sprintf("rec-%05d", i))
	}

	stats := w.Stats()
	if stats.BufferedBytes > 30 {
		t.Errorf("BufferedBytes = %d, want <= 30", stats.BufferedBytes)
	}
	if stats.BufferedRecords+stats.DroppedRecords != 10 {
		t.Errorf("buffered %d + dropped %d != 10", stats.BufferedRecords, stats.DroppedRecords)
	}
	// newest record survives
	if last := w.records[len(w.records)-1]; last != "rec-00009\n" {
		t.Errorf("newest retained record = %q", last)
	}
}
