package replay

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/storage"
)

// DefaultPattern matches durable target logs in the data directory
const DefaultPattern = "*" + storage.LogSuffix

// ReplayFile replays one log file, using the identity encoded in its name
func (a *Aggregator) ReplayFile(fs afero.Fs, path string, tree *heatmap.Tree) (Result, error) {
	identity, ok := storage.IdentityFromPath(path)
	if !ok {
		return Result{}, fmt.Errorf("not a target log: %s", path)
	}

	f, err := fs.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	return a.Replay(f, identity, tree)
}

// DirResult summarizes a directory scan
type DirResult struct {
	Files  int               `json:"files"`
	Totals Result            `json:"totals"`
	ByID   map[string]Result `json:"by_identity"`
}

// ReplayDir replays every file in dir whose name matches pattern
// (DefaultPattern when empty). A file that cannot be read is logged and
// skipped; the scan stops early only when ctx is cancelled.
func (a *Aggregator) ReplayDir(ctx context.Context, fs afero.Fs, dir, pattern string, tree *heatmap.Tree) (DirResult, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return DirResult{}, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return DirResult{}, fmt.Errorf("failed to read data directory: %w", err)
	}

	res := DirResult{ByID: make(map[string]Result)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if entry.IsDir() || !matcher.Match(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		fileRes, err := a.ReplayFile(fs, path, tree)
		if err != nil {
			log.Printf("[Replay] Skipping %s: %v", path, err)
			continue
		}

		id, _ := storage.IdentityFromPath(path)
		res.Files++
		res.Totals.Add(fileRes)
		res.ByID[id] = fileRes
	}
	return res, nil
}
