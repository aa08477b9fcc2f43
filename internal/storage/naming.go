package storage

import (
	"path/filepath"
	"regexp"
	"strings"
)

// LogSuffix terminates every durable target log file name
const LogSuffix = "_log.txt"

// unsafeFilenameChars matches characters that are unsafe for filenames on various filesystems
var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var repeatedUnderscores = regexp.MustCompile(`_+`)

// LogIdentity returns the series identity for a target address: dots and
// filesystem-unsafe characters become underscores, so 8.8.8.8 maps to 8_8_8_8
func LogIdentity(address string) string {
	safe := strings.ReplaceAll(strings.TrimSpace(address), ".", "_")
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = unsafeFilenameChars.ReplaceAllString(safe, "_")
	if safe == "" {
		safe = "unnamed"
	}
	return safe
}

// LogPath returns <dataDir>/<identity>_log.txt for a target address
func LogPath(dataDir, address string) string {
	return filepath.Join(dataDir, LogIdentity(address)+LogSuffix)
}

// IdentityFromPath recovers the series identity from a log file path.
// The second return is false when the name does not end in LogSuffix.
func IdentityFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, LogSuffix) || len(base) == len(LogSuffix) {
		return "", false
	}
	return strings.TrimSuffix(base, LogSuffix), true
}

// sanitizeName turns a display name into a lowercase file stem
func sanitizeName(name string) string {
	safe := strings.ReplaceAll(name, " ", "_")
	safe = unsafeFilenameChars.ReplaceAllString(safe, "_")
	safe = strings.ToLower(safe)
	safe = repeatedUnderscores.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if len(safe) > 200 {
		safe = safe[:200]
	}
	if safe == "" {
		safe = "unnamed"
	}
	return safe
}
