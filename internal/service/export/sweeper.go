package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const partialSuffix = ".partial"

// Sweeper periodically removes expired CSV files and abandoned partial files
// from the export directory.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a Sweeper for dir. Files older than maxAge are removed.
func NewSweeper(dir string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger.With("component", "export-sweeper"),
		now:    time.Now,
	}
}

// Start registers the sweep on schedule (cron syntax or @every) and starts
// the cron loop.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(); err != nil {
			s.logger.Warn("csv sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("csv sweeper started", "dir", s.dir, "schedule", schedule)
	return nil
}

// Stop stops the cron loop and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes expired files and returns how many were deleted.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read export dir: %w", err)
	}
	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(ValidFileID(name) || strings.HasSuffix(name, partialSuffix)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("failed to remove expired csv", "file", name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("expired csv files removed", "count", removed)
	}
	return removed, nil
}
