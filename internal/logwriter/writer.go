package logwriter

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// DefaultThreshold is the buffered byte count that triggers a flush when none is configured
const DefaultThreshold = 1024 * 1024

// Stats describes the writer's buffer and flush history
type Stats struct {
	BufferedBytes   int
	BufferedRecords int
	WrittenRecords  int
	DroppedRecords  int
	Flushes         int
	FailedFlushes   int
}

// Writer accumulates newline-terminated records in memory and appends them to
// a file in one write once the buffered size reaches the threshold.
//
// A Writer belongs to a single producer; it does no locking of its own.
type Writer struct {
	fs          afero.Fs
	path        string
	threshold   int
	maxRetained int

	records []string
	size    int
	stats   Stats
}

// New creates a writer appending to path on fs. A threshold <= 0 selects
// DefaultThreshold.
func New(fs afero.Fs, path string, threshold int) *Writer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Writer{
		fs:          fs,
		path:        path,
		threshold:   threshold,
		maxRetained: threshold * 8,
	}
}

// SetMaxRetained bounds how many bytes are kept after failed flushes.
// Values <= 0 restore the default of eight thresholds.
func (w *Writer) SetMaxRetained(n int) {
	if n <= 0 {
		n = w.threshold * 8
	}
	if n < w.threshold {
		n = w.threshold
	}
	w.maxRetained = n
}

// Path returns the file the writer appends to
func (w *Writer) Path() string {
	return w.path
}

// Write buffers record plus a line terminator and flushes synchronously once
// the threshold is reached. The returned error comes from that flush; the
// record itself is always buffered.
func (w *Writer) Write(record string) error {
	line := record + "\n"
	w.records = append(w.records, line)
	w.size += len(line)

	if w.size >= w.threshold {
		return w.Flush()
	}
	return nil
}

// Flush appends every buffered record to the file with a single write. On
// failure the records stay buffered for the next attempt.
func (w *Writer) Flush() error {
	if len(w.records) == 0 {
		return nil
	}

	if err := w.appendFile(strings.Join(w.records, "")); err != nil {
		w.stats.FailedFlushes++
		w.trimRetained()
		return err
	}

	w.stats.Flushes++
	w.stats.WrittenRecords += len(w.records)
	w.records = nil
	w.size = 0
	return nil
}

// Close flushes pending records, if there are any
func (w *Writer) Close() error {
	if len(w.records) == 0 {
		return nil
	}
	return w.Flush()
}

// Stats returns a snapshot of the writer's counters
func (w *Writer) Stats() Stats {
	s := w.stats
	s.BufferedBytes = w.size
	s.BufferedRecords = len(w.records)
	return s
}

func (w *Writer) appendFile(data string) error {
	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.path, err)
	}

	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	return nil
}

// trimRetained drops the oldest whole records while the buffer exceeds maxRetained
func (w *Writer) trimRetained() {
	drop := 0
	for w.size > w.maxRetained && drop < len(w.records) {
		w.size -= len(w.records[drop])
		drop++
	}
	if drop > 0 {
		w.records = append([]string(nil), w.records[drop:]...)
		w.stats.DroppedRecords += drop
	}
}
