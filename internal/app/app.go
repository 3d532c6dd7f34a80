// Package app wires the notification layer together behind the Center
// facade. The host application talks to Center; it never touches the
// transport or the tray directly.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pushkit/internal/channel"
	"pushkit/internal/config"
	"pushkit/internal/dispatch"
	"pushkit/internal/eventbus"
	"pushkit/internal/history"
	"pushkit/internal/inbound"
	"pushkit/internal/message"
	"pushkit/internal/render"
	"pushkit/internal/transport"
	"pushkit/pkg/logx"
)

// ErrNotInitialized is returned by dispatch-side operations before Init.
var ErrNotInitialized = errors.New("notification center not initialized")

type Center struct {
	cfg atomic.Pointer[config.Config]

	sender   transport.Sender
	renderer render.Renderer
	store    history.Store
	bus      eventbus.Bus
	engine   *dispatch.Engine
	inbound  *inbound.Handler
	log      logx.Logger

	initMu      sync.Mutex
	initialized atomic.Bool
	closeOnce   sync.Once
}

// New assembles a Center from its collaborators. cfg may be refined later
// via Apply; Init must run before any dispatch-side operation.
func New(cfg config.Config, sender transport.Sender, renderer render.Renderer, store history.Store, bus eventbus.Bus, log logx.Logger) *Center {
	cfg = cfg.Normalized()
	c := &Center{
		sender:   sender,
		renderer: renderer,
		store:    store,
		bus:      bus,
		log:      log,
	}
	c.cfg.Store(&cfg)
	c.engine = dispatch.New(sender, bus, store, log)
	c.engine.SetRate(cfg.Transport.RatePerSec)
	c.inbound = inbound.New(bus, renderer, log)
	return c
}

// Init validates the channel registry, checks the tray permission, and
// announces the transport token. Errors here propagate synchronously.
// Re-initializing while already initialized is a no-op.
func (c *Center) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized.Load() {
		return nil
	}

	cfg := c.snapshot()
	if err := channel.Validate(cfg.DefaultChannel, cfg.Channels); err != nil {
		return err
	}
	if c.renderer != nil {
		if err := c.renderer.EnsurePermission(ctx); err != nil {
			return err
		}
	}
	if c.sender != nil {
		token, err := c.sender.Token(ctx)
		if err != nil {
			c.log.Warn("transport token unavailable", logx.Err(err))
		} else if token != "" {
			cfg.Hooks.TokenRefreshed(token)
		}
	}

	c.initialized.Store(true)
	c.log.Info("notification center initialized",
		logx.String("default_channel", cfg.DefaultChannel.ID),
		logx.Int("channels", len(cfg.Channels)))
	return nil
}

// Apply swaps the whole config. In-flight operations keep the snapshot they
// captured at entry.
func (c *Center) Apply(cfg config.Config) {
	cfg = cfg.Normalized()
	c.cfg.Store(&cfg)
	c.engine.SetRate(cfg.Transport.RatePerSec)
	c.log.Debug("config applied", logx.Int("channels", len(cfg.Channels)))
}

func (c *Center) snapshot() config.Config {
	return *c.cfg.Load()
}

// Push dispatches msg and retains it in history.
func (c *Center) Push(ctx context.Context, msg message.Message) error {
	return c.PushWith(ctx, msg, dispatch.Options{})
}

// PushWith is Push with explicit options.
func (c *Center) PushWith(ctx context.Context, msg message.Message, opts dispatch.Options) error {
	if !c.initialized.Load() {
		return ErrNotInitialized
	}
	return c.engine.Dispatch(ctx, c.snapshot(), msg, opts)
}

// HandleTransportMessage is invoked by the transport when a payload arrives.
func (c *Center) HandleTransportMessage(ctx context.Context, data map[string]string) {
	if !c.initialized.Load() {
		c.log.Warn("inbound payload before init, dropped")
		return
	}
	c.inbound.HandleMessage(ctx, c.snapshot(), data)
}

// HandleSelected is invoked by the platform when the user taps a
// notification.
func (c *Center) HandleSelected(ctx context.Context, data map[string]string) {
	if !c.initialized.Load() {
		c.log.Warn("tap payload before init, dropped")
		return
	}
	c.inbound.HandleSelected(ctx, c.snapshot(), data)
}

// SubscribeTopic subscribes this installation to a topic.
func (c *Center) SubscribeTopic(ctx context.Context, name string) error {
	if !c.initialized.Load() {
		return ErrNotInitialized
	}
	return c.sender.SubscribeTopic(ctx, name)
}

func (c *Center) UnsubscribeTopic(ctx context.Context, name string) error {
	if !c.initialized.Load() {
		return ErrNotInitialized
	}
	return c.sender.UnsubscribeTopic(ctx, name)
}

// Token reports the current transport registration token.
func (c *Center) Token(ctx context.Context) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	return c.sender.Token(ctx)
}

// ---- history forwarding ----

func (c *Center) History(ctx context.Context) ([]message.Message, error) {
	cfg := c.snapshot()
	return c.store.ByUser(ctx, cfg.UserID())
}

func (c *Center) Get(ctx context.Context, id string) (message.Message, bool, error) {
	return c.store.Get(ctx, id)
}

func (c *Center) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

func (c *Center) MarkSeen(ctx context.Context, id string) error {
	return c.store.MarkSeen(ctx, id)
}

func (c *Center) MarkAllSeen(ctx context.Context) error {
	cfg := c.snapshot()
	return c.store.MarkAllSeen(ctx, cfg.UserID())
}

func (c *Center) UnseenCount(ctx context.Context) (int, error) {
	return c.store.UnseenCount(ctx)
}

func (c *Center) SubscribeUnseen(buffer int) (<-chan int, func()) {
	return c.store.SubscribeUnseen(buffer)
}

// Cancel removes a displayed notification from the tray.
func (c *Center) Cancel(ctx context.Context, id int32) error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Cancel(ctx, id)
}

func (c *Center) CancelAll(ctx context.Context) error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.CancelAll(ctx)
}

// Events exposes the event stream for downstream consumers.
func (c *Center) Events() eventbus.Bus { return c.bus }

// Close tears the layer down: the bus closes exactly once and the store is
// released. Safe to call repeatedly.
func (c *Center) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.bus.Close()
		if c.store != nil {
			err = c.store.Close()
		}
		c.initialized.Store(false)
	})
	return err
}
