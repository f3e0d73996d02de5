package trace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/saturn/pkg/config"
)

// Pruner deletes trace files older than the retention period, on a cron
// schedule. Day files age out as a unit: a file is deleted once its last
// write is older than the retention window.
type Pruner struct {
	dir       string
	retention time.Duration
	schedule  string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner builds a pruner from trace config.
func NewPruner(cfg config.TraceConfig) *Pruner {
	return &Pruner{
		dir:       cfg.Dir,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		schedule:  cfg.PruneSchedule,
		cron:      cron.New(),
	}
}

// Start schedules pruning. If retention or the schedule is unset the pruner
// stays idle and Start returns nil. The scheduler stops when ctx is
// cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retention <= 0 || p.schedule == "" {
		slog.Info("trace pruning not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}
	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule trace pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	slog.Info("trace pruning scheduled",
		"schedule", p.schedule,
		"retention", p.retention,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Prune deletes trace files whose last modification is older than the
// retention period. Returns the number of files deleted.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(p.dir, "messages-*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("list trace files: %w", err)
	}

	cutoff := time.Now().Add(-p.retention)
	deleted := 0
	for _, path := range matches {
		select {
		case <-ctx.Done():
			return deleted, ctx.Err()
		default:
		}

		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to delete trace file", "path", path, "error", err)
			continue
		}
		deleted++
		slog.Debug("deleted trace file", "path", path)
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		ctx := p.cron.Stop()
		<-ctx.Done()
		p.running = false
		slog.Info("trace pruner stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pruner) runPruning(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		slog.Error("scheduled trace pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("scheduled trace pruning completed", "deleted_files", deleted)
	} else {
		slog.Debug("scheduled trace pruning completed, nothing to delete")
	}
}
