package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"github.com/modelscout/modelscout/internal/infrastructure/logger"
)

// jobTimeout bounds a single scheduled sync pass.
const jobTimeout = 10 * time.Minute

// SyncFunc runs one sync pass.
type SyncFunc func(ctx context.Context)

// Scheduler runs the sync once at startup and then on a fixed minute
// interval until the context is cancelled. An interval of zero means
// run-once mode.
type Scheduler struct {
	ctab            *crontab.Crontab
	intervalMinutes int
	sync            SyncFunc
}

func New(intervalMinutes int, sync SyncFunc) *Scheduler {
	return &Scheduler{
		ctab:            crontab.New(),
		intervalMinutes: intervalMinutes,
		sync:            sync,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.GetLogger()

	// execute once on start
	s.sync(ctx)

	if s.intervalMinutes <= 0 {
		return ctx.Err()
	}

	cronExpr := fmt.Sprintf("*/%d * * * *", s.intervalMinutes)
	if err := s.ctab.AddJob(cronExpr, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		s.sync(jobCtx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	log.Info().Msgf("sync scheduled: every %d minute(s)", s.intervalMinutes)

	<-ctx.Done()
	s.ctab.Shutdown()
	return ctx.Err()
}
