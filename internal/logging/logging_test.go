package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wellsgz/pingheat/internal/probe"
)

func capture(t *testing.T, format Format) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat(format)
	t.Cleanup(func() {
		SetWriter(os.Stderr)
		SetFormat(FormatText)
	})
	return &buf
}

func TestSampleText(t *testing.T) {
	tests := []struct {
		name   string
		sample probe.Sample
		want   string
	}{
		{"reachable", probe.Sample{Target: "dns", RTT: &probe.RTT{Min: 9, Avg: 11, Max: 15}, LossRate: 0.2}, "[Probe] dns: avg 11ms (min 9, max 15), loss 20%"},
		{"failed", probe.Sample{Target: "dns", Error: "exec: not found"}, "[Probe] dns: FAILED - exec: not found"},
		{"unreachable", probe.Sample{Target: "dns", LossRate: 1}, "[Probe] dns: unreachable, loss 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, FormatText)
			Sample(tt.sample)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Sample() wrote %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSampleJSON(t *testing.T) {
	buf := capture(t, FormatJSON)
	Sample(probe.Sample{Target: "dns", Timestamp: time.Now(), LossRate: 1})

	var entry SampleLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if entry.Target != "dns" || entry.AvgMs != -1 || entry.LossRate != 1 || entry.Component != "Probe" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestFlushAndError(t *testing.T) {
	buf := capture(t, FormatJSON)
	Flush("dns", "/data/8_8_8_8_log.txt", 3, errors.New("disk full"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if entry.Level != "error" || entry.Component != "Writer" {
		t.Errorf("entry = %+v", entry)
	}

	buf = capture(t, FormatText)
	Flush("dns", "/data/8_8_8_8_log.txt", 3, nil)
	if !strings.Contains(buf.String(), "[Writer] Flushed 3 records for dns") {
		t.Errorf("Flush() wrote %q", buf.String())
	}
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingheat.log")
	closer := SetupFile(path, 1, 1, nil)
	t.Cleanup(func() {
		closer.Close()
		SetWriter(os.Stderr)
	})

	log.Printf("[Test] hello")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(content), "[Test] hello") {
		t.Errorf("log file = %q", content)
	}
}
