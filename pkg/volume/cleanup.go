package volume

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/nuulab/ifcjobs/pkg/broker"
)

// DefaultRetention is how old an output file must be before the sweep
// removes it (spec §4.7: default 7 days).
const DefaultRetention = 7 * 24 * time.Hour

// sweptKinds are the per-kind output directories the sweep collaborator
// watches; clash and diff reports are the ones named explicitly in the
// contract, other kinds' outputs are redeemed-and-gone via download tokens
// well before retention would matter.
var sweptKinds = []string{"clash", "diff"}

// Sweeper periodically removes aged files from the output roots and holds
// a distributed lock for the duration of each pass so that running more
// than one cleanup replica doesn't race to delete the same files.
type Sweeper struct {
	Roots     Roots
	Lock      *broker.DistributedLock
	Retention time.Duration
	Interval  time.Duration
	Logger    zerolog.Logger
}

// NewSweeper builds a Sweeper with the package defaults for retention and
// sweep interval; callers may override both before calling Run.
func NewSweeper(roots Roots, lock *broker.DistributedLock, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		Roots:     roots,
		Lock:      lock,
		Retention: DefaultRetention,
		Interval:  time.Hour,
		Logger:    logger,
	}
}

// Run blocks, sweeping on a fixed interval, until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	const lockTTL = 5 * time.Minute
	lock, err := s.Lock.TryAcquire(ctx, "cleanup-sweep", lockTTL, 2*time.Second)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("skipping sweep, another replica holds the lock")
		return
	}
	defer lock.Release(ctx)

	cutoff := time.Now().Add(-s.Retention)
	for _, kind := range sweptKinds {
		removed, err := sweepDir(s.Roots.OutputDir(kind), cutoff)
		if err != nil {
			s.Logger.Warn().Err(err).Str("kind", kind).Msg("sweep failed")
			continue
		}
		if removed > 0 {
			s.Logger.Info().Str("kind", kind).Int("removed", removed).Msg("swept aged artifacts")
		}
	}
}

// sweepDir removes regular files under root older than cutoff, then
// removes any subdirectory left empty by that pass.
func sweepDir(root string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			n, err := sweepDir(path, cutoff)
			if err != nil {
				return removed, err
			}
			removed += n
			if isEmptyDir(path) {
				os.Remove(path)
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func isEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}
