// Package dispatch fans a notification out to its targets, retries failed
// per-target deliveries with a fixed delay, and emits the completion event.
package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pushkit/internal/channel"
	"pushkit/internal/config"
	"pushkit/internal/eventbus"
	"pushkit/internal/history"
	"pushkit/internal/message"
	"pushkit/internal/transport"
	"pushkit/pkg/logx"
)

// Engine drives the per-target fan-out. Safe for concurrent use; every
// Dispatch call works off the config snapshot it was handed.
type Engine struct {
	sender transport.Sender
	bus    eventbus.Bus
	store  history.Store
	log    logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

type Options struct {
	// SkipHistory suppresses the history write for this call.
	SkipHistory bool
}

func New(sender transport.Sender, bus eventbus.Bus, store history.Store, log logx.Logger) *Engine {
	return &Engine{sender: sender, bus: bus, store: store, log: log}
}

// SetRate installs a shared token bucket gating delivery attempts across all
// targets. Zero or negative disables it.
func (e *Engine) SetRate(perSec int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if perSec <= 0 {
		e.limiter = nil
		return
	}
	// Burst = rate per sec, so short spikes don't block too hard.
	e.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
}

// Dispatch delivers msg to every target concurrently and independently.
//
// A target's failure is retried after the fixed delay, up to the attempt
// budget, and never blocks or aborts another target. After every target
// reaches a terminal state, exactly one "added" event is emitted and the
// message is persisted (unless opts.SkipHistory). Per-target failures are
// absorbed; the only caller-visible failure is an invalid message.
func (e *Engine) Dispatch(ctx context.Context, cfg config.Config, msg message.Message, opts Options) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Normalized()

	eff := channel.Resolve(cfg.DefaultChannel, cfg.Channels, msg.Channel).
		Override(msg.Importance, msg.PlaySound)

	targets := targetsOf(msg)
	attempts := cfg.Attempts()
	delay := cfg.RetryDelay.Std()
	data := message.Encode(msg)

	e.log.Debug("dispatch started",
		logx.String("id", msg.ID),
		logx.String("channel", eff.ID),
		logx.Int("targets", len(targets)),
		logx.Int("attempts", attempts))

	// Join barrier over the concurrent fan-out: the added event fires only
	// after all targets are terminal.
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			e.deliver(ctx, target, msg, data, attempts, delay)
		}(t)
	}
	wg.Wait()

	e.bus.Publish(eventbus.Event{Type: eventbus.Added, Message: &msg})

	if !opts.SkipHistory && e.store != nil {
		if err := e.store.Save(ctx, cfg.UserID(), msg); err != nil {
			e.log.Warn("history save failed", logx.String("id", msg.ID), logx.Err(err))
		}
	}
	return nil
}

// deliver runs one target's attempt sequence to a terminal state.
func (e *Engine) deliver(ctx context.Context, target string, msg message.Message, data map[string]string, attempts int, delay time.Duration) {
	e.mu.Lock()
	lim := e.limiter
	e.mu.Unlock()

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}

		err := e.sender.Send(ctx, target, msg.Title, msg.Body, data)
		if err == nil {
			e.log.Debug("delivery succeeded",
				logx.String("id", msg.ID),
				logx.String("target", target),
				logx.Int("attempt", attempt))
			return
		}
		last = err
		e.log.Debug("delivery attempt failed",
			logx.String("id", msg.ID),
			logx.String("target", target),
			logx.Int("attempt", attempt),
			logx.Int("max", attempts),
			logx.String("kind", string(transport.Kind(err))),
			logx.Err(err))

		if attempt >= attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	// Retries exhausted. Absorbed here: the caller only ever sees the
	// single added event.
	e.log.Warn("delivery failed, retries exhausted",
		logx.String("id", msg.ID),
		logx.String("target", target),
		logx.Int("attempts", attempts),
		logx.String("kind", string(transport.Kind(last))),
		logx.Err(last))
}

// targetsOf resolves the target set: a set topic is the single logical
// target (prefixed for the wire), otherwise the recipient list.
func targetsOf(m message.Message) []string {
	if m.Topic != "" {
		return []string{transport.TopicPrefix + m.Topic}
	}
	return append([]string(nil), m.Recipients...)
}
