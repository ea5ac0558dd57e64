package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StartJanitor sweeps stale pipeline artifacts (spooled uploads, leaked
// workdirs) out of the temp directory. Jobs clean up after themselves on
// every exit path; the janitor only catches what a crashed process left
// behind.
func (o *Orchestrator) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.sweep(ttl)
			}
		}
	}()
}

func (o *Orchestrator) sweep(ttl time.Duration) {
	entries, err := os.ReadDir(o.cfg.TempDir)
	if err != nil {
		o.logger.Warn("janitor could not read temp dir", "dir", o.cfg.TempDir, "error", err)
		return
	}

	cutoff := o.now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "subgen-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(o.cfg.TempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			o.logger.Warn("janitor failed to remove", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		o.logger.Info("janitor sweep completed", "removed", removed)
	}
}
