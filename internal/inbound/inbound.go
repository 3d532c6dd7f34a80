// Package inbound turns raw transport payloads into messages, decides local
// rendering, and emits the received/tapped events. Nothing here ever
// propagates an error back to the transport: a malformed or unrenderable
// payload is logged and dropped, it must never crash the host process.
package inbound

import (
	"context"

	"pushkit/internal/channel"
	"pushkit/internal/config"
	"pushkit/internal/eventbus"
	"pushkit/internal/message"
	"pushkit/internal/render"
	"pushkit/pkg/logx"
)

type Handler struct {
	bus      eventbus.Bus
	renderer render.Renderer
	log      logx.Logger
}

func New(bus eventbus.Bus, renderer render.Renderer, log logx.Logger) *Handler {
	return &Handler{bus: bus, renderer: renderer, log: log}
}

// HandleMessage processes one inbound transport payload.
//
// Rendering is opt-in: without a ShouldShow hook answering true the message
// stays silent. The received event fires regardless of the render decision.
func (h *Handler) HandleMessage(ctx context.Context, cfg config.Config, data map[string]string) {
	cfg = cfg.Normalized()

	m, err := message.Decode(data)
	if err != nil {
		h.log.Warn("inbound payload dropped", logx.Err(err))
		return
	}

	if cfg.Hooks.ShouldShow(m) {
		h.render(ctx, cfg, m)
	}

	cfg.Hooks.Received(m)
	h.bus.Publish(eventbus.Event{Type: eventbus.Received, Message: &m})
}

func (h *Handler) render(ctx context.Context, cfg config.Config, m message.Message) {
	if h.renderer == nil {
		return
	}
	eff := channel.Resolve(cfg.DefaultChannel, cfg.Channels, m.Channel).
		Override(m.Importance, m.PlaySound)

	var err error
	if m.ScheduleAt != nil {
		err = h.renderer.Schedule(ctx, m.NotificationID, m.Title, m.Body, eff, m.Payload, *m.ScheduleAt, m.Timezone)
	} else {
		err = h.renderer.Show(ctx, m.NotificationID, m.Title, m.Body, eff, m.Payload)
	}
	if err != nil {
		h.log.Warn("render failed",
			logx.String("id", m.ID),
			logx.Int32("notification_id", m.NotificationID),
			logx.Err(err))
	}
}

// HandleSelected processes a user tap on a displayed notification.
func (h *Handler) HandleSelected(ctx context.Context, cfg config.Config, data map[string]string) {
	cfg = cfg.Normalized()

	m, err := message.Decode(data)
	if err != nil {
		h.log.Warn("tap payload dropped", logx.Err(err))
		return
	}

	cfg.Hooks.Selected(m)
	h.bus.Publish(eventbus.Event{Type: eventbus.Tapped, Message: &m})
}
