package history

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"pushkit/pkg/logx"
)

// Retention prunes old history records on a cron schedule.
type Retention struct {
	store  Store
	maxAge time.Duration
	log    logx.Logger
	cron   *cron.Cron
}

// NewRetention builds the pruning job. A non-positive maxAge or empty
// schedule disables it (Start becomes a no-op).
func NewRetention(store Store, schedule string, maxAge time.Duration, log logx.Logger) (*Retention, error) {
	r := &Retention{store: store, maxAge: maxAge, log: log}
	if schedule == "" || maxAge <= 0 || store == nil {
		return r, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, r.run)
	if err != nil {
		return nil, err
	}
	r.cron = c
	return r, nil
}

func (r *Retention) Start() {
	if r.cron != nil {
		r.cron.Start()
	}
}

func (r *Retention) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-r.maxAge)
	n, err := r.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		r.log.Warn("history prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		r.log.Info("history pruned", logx.Int("removed", n), logx.Time("cutoff", cutoff))
	}
}
