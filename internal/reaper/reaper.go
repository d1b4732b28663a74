// Package reaper flips buses that stopped reporting to inactive. It runs on its own
// schedule and never touches the arrivals path.
package reaper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Deactivator marks buses whose last update is older than cutoff inactive.
type Deactivator interface {
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type Recorder interface {
	SweepCompleted(deactivated int64)
	SweepFailed()
}

type Reaper struct {
	store    Deactivator
	recorder Recorder
	interval time.Duration
	silence  time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

const (
	DefaultInterval = 30 * time.Second
	DefaultSilence  = 2 * time.Minute
)

// New builds a Reaper that sweeps every interval and deactivates buses silent for longer
// than silence. recorder may be nil. Non-positive durations fall back to the defaults.
func New(store Deactivator, recorder Recorder, interval, silence time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if silence <= 0 {
		silence = DefaultSilence
	}
	return &Reaper{
		store:    store,
		recorder: recorder,
		interval: interval,
		silence:  silence,
		now:      time.Now,
		log:      logrus.WithField("component", "reaper"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	r.log.WithFields(logrus.Fields{
		"interval": r.interval.String(),
		"silence":  r.silence.String(),
	}).Info("liveness reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Sweep(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("liveness reaper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single pass and returns how many buses were deactivated.
func (r *Reaper) Sweep(ctx context.Context) int64 {
	cutoff := r.now().Add(-r.silence)
	n, err := r.store.DeactivateStale(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			r.log.WithError(err).Error("liveness sweep failed")
		}
		if r.recorder != nil {
			r.recorder.SweepFailed()
		}
		return 0
	}
	if r.recorder != nil {
		r.recorder.SweepCompleted(n)
	}
	if n > 0 {
		r.log.WithFields(logrus.Fields{
			"deactivated": n,
			"cutoff":      cutoff.Format(time.RFC3339),
		}).Info("deactivated silent buses")
	}
	return n
}
