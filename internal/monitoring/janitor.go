package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const purgeTimeout = 30 * time.Second

// TokenPurger removes denylist entries that are past their expiry.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired entries from the token denylist.
// Revocation checks never depend on it having run.
type Janitor struct {
	purger TokenPurger
	cron   *cron.Cron
}

// NewJanitor creates a janitor that runs on the given cron schedule
// (standard five-field syntax or descriptors such as "@hourly").
func NewJanitor(purger TokenPurger, schedule string) (*Janitor, error) {
	j := &Janitor{
		purger: purger,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid token purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	log.Info().Msg("Starting token janitor...")
	j.cron.Start()
}

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	log.Info().Msg("Stopped token janitor.")
}

// RunOnce purges expired tokens immediately.
func (j *Janitor) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	n, err := j.purger.PurgeExpiredTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Janitor: Failed to purge expired tokens")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Janitor: Purged expired tokens")
	}
}
