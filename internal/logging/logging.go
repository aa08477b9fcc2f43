package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wellsgz/pingheat/internal/probe"
)

// Format represents the logging output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger wraps the standard logger with format options
type Logger struct {
	format Format
	writer io.Writer
	mu     sync.Mutex
}

// Global logger instance
var defaultLogger = &Logger{
	format: FormatText,
	writer: os.Stderr,
}

// SetFormat sets the logging format globally
func SetFormat(format Format) {
	defaultLogger.mu.Lock()
	defaultLogger.format = format
	defaultLogger.mu.Unlock()
}

// GetFormat returns the current logging format
func GetFormat() Format {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.format
}

// SetWriter sets the output writer
func SetWriter(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.writer = w
	defaultLogger.mu.Unlock()
	log.SetOutput(w)
}

// SetupFile tees process logs to console and a size-rotated file. A nil
// console writes to the file only. The returned closer releases the file.
func SetupFile(path string, maxSizeMB, maxBackups int, console io.Writer) io.Closer {
	fileLogger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB, // megabytes
		MaxBackups: maxBackups,
		MaxAge:     0, // don't delete by age
		Compress:   false,
	}
	if console == nil {
		SetWriter(fileLogger)
	} else {
		SetWriter(io.MultiWriter(console, fileLogger))
	}
	return fileLogger
}

// LogEntry represents a structured log entry for JSON output
type LogEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Component string      `json:"component"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

// SampleLogEntry represents a probe sample log entry
type SampleLogEntry struct {
	Timestamp string  `json:"timestamp"`
	Level     string  `json:"level"`
	Component string  `json:"component"`
	Target    string  `json:"target"`
	AvgMs     int     `json:"avg_ms"`
	MinMs     int     `json:"min_ms"`
	MaxMs     int     `json:"max_ms"`
	LossRate  float64 `json:"loss_rate"`
	Error     string  `json:"error,omitempty"`
}

func writeJSON(v interface{}) {
	jsonBytes, _ := json.Marshal(v)
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.writer.Write(append(jsonBytes, '\n'))
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Info logs an info message
func Info(component, message string, data interface{}) {
	if GetFormat() == FormatJSON {
		writeJSON(LogEntry{
			Timestamp: now(),
			Level:     "info",
			Component: component,
			Message:   message,
			Data:      data,
		})
		return
	}
	log.Printf("[%s] %s", component, message)
}

// Sample logs one probe burst
func Sample(s probe.Sample) {
	if GetFormat() == FormatJSON {
		writeJSON(SampleLogEntry{
			Timestamp: now(),
			Level:     "info",
			Component: "Probe",
			Target:    s.Target,
			AvgMs:     s.AvgPing(),
			MinMs:     s.MinPing(),
			MaxMs:     s.MaxPing(),
			LossRate:  s.LossRate,
			Error:     s.Error,
		})
		return
	}

	switch {
	case s.Reachable():
		log.Printf("[Probe] %s: avg %dms (min %d, max %d), loss %.0f%%", s.Target, s.AvgPing(), s.MinPing(), s.MaxPing(), s.LossPercent())
	case s.Error != "":
		log.Printf("[Probe] %s: FAILED - %s", s.Target, s.Error)
	default:
		log.Printf("[Probe] %s: unreachable, loss %.0f%%", s.Target, s.LossPercent())
	}
}

// Flush logs the outcome of writing a target's buffered records to disk
func Flush(target, path string, records int, err error) {
	if err != nil {
		Error("Writer", fmt.Sprintf("Failed to flush %d records for %s to %s", records, target, path), err)
		return
	}
	Info("Writer", fmt.Sprintf("Flushed %d records for %s to %s", records, target, path),
		map[string]interface{}{"target": target, "path": path, "records": records})
}

// Error logs an error message
func Error(component, message string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	if GetFormat() == FormatJSON {
		writeJSON(LogEntry{
			Timestamp: now(),
			Level:     "error",
			Component: component,
			Message:   message,
			Data:      map[string]string{"error": errStr},
		})
		return
	}

	if err != nil {
		log.Printf("[%s] %s: %v", component, message, err)
	} else {
		log.Printf("[%s] %s", component, message)
	}
}
