package services

import (
	"time"

	"github.com/robfig/cron/v3"

	"tessera/internal/logger"
)

// Scheduler runs the dividend payout job on a cron cadence.
type Scheduler struct {
	cron      *cron.Cron
	dividends DividendServicer
}

// NewScheduler creates a scheduler that pays out due dividend schedules.
func NewScheduler(dividends DividendServicer) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		dividends: dividends,
	}
}

// Start registers the payout job with the given cron spec and begins
// running it in the background.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		runs, err := s.dividends.RunDue(time.Now())
		if err != nil {
			logger.Get().Errorw("scheduled dividend run failed", "error", err.Error())
			return
		}
		for _, run := range runs {
			if run.Err != "" {
				logger.Get().Errorw("scheduled payout failed",
					"schedule_id", run.ScheduleID,
					"asset_id", run.AssetID,
					"error", run.Err,
				)
			}
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Get().Infow("dividend scheduler started", "spec", spec)
	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
