package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// DefaultRegistry is written when the targets file does not exist yet
var DefaultRegistry = []string{
	"google.com;google.com;#FF0000;5",
}

// ParseRegistryLine parses "address;description;color;ping_delay" where
// ping_delay is a whole number of seconds
func ParseRegistryLine(line string) (Target, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) != 4 {
		return Target{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}

	delay := parts[3]
	if delay == "" || strings.TrimLeft(delay, "0123456789") != "" {
		return Target{}, fmt.Errorf("ping_delay %q is not a whole number of seconds", delay)
	}
	seconds, err := strconv.Atoi(delay)
	if err != nil {
		return Target{}, fmt.Errorf("invalid ping_delay: %w", err)
	}

	return Target{
		Name:     parts[1],
		Host:     parts[0],
		Color:    parts[2],
		Interval: time.Duration(seconds) * time.Second,
	}, nil
}

// ParseRegistry reads a targets file, skipping and logging invalid lines
func ParseRegistry(r io.Reader) ([]Target, error) {
	var targets []Target

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		target, err := ParseRegistryLine(line)
		if err != nil {
			log.Printf("[Config] Invalid server entry on line %d: %q: %v", lineNo, line, err)
			continue
		}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return targets, nil
}

// LoadRegistry parses the targets file at path. A missing file is created
// with DefaultRegistry and those defaults are returned.
func LoadRegistry(afs afero.Fs, path string) ([]Target, error) {
	f, err := afs.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := WriteDefaultRegistry(afs, path); err != nil {
			return nil, err
		}
		log.Printf("[Config] Created default targets file %s", path)
		return ParseRegistry(strings.NewReader(strings.Join(DefaultRegistry, "\n")))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	return ParseRegistry(f)
}

// WriteDefaultRegistry writes DefaultRegistry to path, creating parent directories
func WriteDefaultRegistry(afs afero.Fs, path string) error {
	if err := afs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create targets directory: %w", err)
	}
	content := strings.Join(DefaultRegistry, "\n") + "\n"
	if err := afero.WriteFile(afs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write default targets file: %w", err)
	}
	return nil
}
