package chat

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/types"
)

// RetentionSweeper hard-deletes public-room messages older than the
// retention window. Only the well-known public room is swept, room and
// private history is kept indefinitely.
type RetentionSweeper struct {
	persister persistence.Persister
	window    time.Duration
	onSweep   func(deleted int64)
}

func NewRetentionSweeper(cfg *config.Config, persister persistence.Persister) *RetentionSweeper {
	return &RetentionSweeper{persister: persister, window: cfg.RetentionConfig.Window}
}

// OnSweep registers a callback invoked with the number of deleted rows
// after every sweep.
func (s *RetentionSweeper) OnSweep(fn func(deleted int64)) {
	s.onSweep = fn
}

// Sweep deletes all public-room messages created before cutoff.
// Running it twice with the same cutoff is harmless, the second run
// finds nothing.
func (s *RetentionSweeper) Sweep(cutoff time.Time) (int64, error) {
	deleted, err := s.persister.DeleteMessagesBefore(types.PublicRoomId, cutoff)
	if err != nil {
		globals.AppLogger.Error("retention sweep failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if deleted > 0 {
		globals.AppLogger.Info("retention sweep", "deleted", deleted, "cutoff", cutoff)
	}
	if s.onSweep != nil {
		s.onSweep(deleted)
	}
	return deleted, nil
}

// SweepNow sweeps with a cutoff of now minus the retention window.
func (s *RetentionSweeper) SweepNow() (int64, error) {
	return s.Sweep(time.Now().Add(-s.window))
}

// Schedule registers the periodic sweep on c using the configured cron
// spec. Overlapping runs are skipped.
func (s *RetentionSweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(func() {
		_, _ = s.SweepNow()
	})))
}
