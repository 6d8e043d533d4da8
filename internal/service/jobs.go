// internal/service/jobs.go
package service

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vortexsms/campaign-engine/internal/tracker"
)

// StartJobs launches the periodic maintenance jobs: a minutely sweep
// for messages stuck at server ack, and an hourly cleanup of finished
// campaign runs. The returned cron is already started; stop it on
// shutdown.
func (s *CampaignService) StartJobs(tr *tracker.Tracker, stuckWindow time.Duration) *cron.Cron {
	c := cron.New()

	c.AddFunc("@every 1m", func() {
		if n := tr.SweepStuck(stuckWindow); n > 0 {
			s.Log.Info().Int("stuck", n).Msg("flagged messages stuck at server ack")
		}
	})

	c.AddFunc("@hourly", func() {
		s.Engine.CleanupStale(time.Hour)
	})

	c.Start()
	return c
}
