package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pushkit/internal/channel"
	"pushkit/internal/config"
	"pushkit/internal/eventbus"
	"pushkit/internal/message"
	"pushkit/pkg/logx"
)

type recordRenderer struct {
	mu        sync.Mutex
	shown     []int32
	scheduled []int32
	lastEff   channel.Effective
	fail      error
}

func (r *recordRenderer) Show(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, id)
	r.lastEff = ch
	return r.fail
}

func (r *recordRenderer) Schedule(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string, at time.Time, tz string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, id)
	return r.fail
}

func (r *recordRenderer) Cancel(ctx context.Context, id int32) error { return nil }
func (r *recordRenderer) CancelAll(ctx context.Context) error        { return nil }
func (r *recordRenderer) EnsurePermission(ctx context.Context) error { return nil }

func (r *recordRenderer) shownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

func (r *recordRenderer) scheduledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scheduled)
}

// showHooks answers ShouldShow with a constant and records callbacks.
type showHooks struct {
	show     bool
	mu       sync.Mutex
	received []message.Message
	selected []message.Message
}

func (h *showHooks) ShouldShow(message.Message) bool { return h.show }
func (h *showHooks) Received(m message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, m)
}
func (h *showHooks) Selected(m message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = append(h.selected, m)
}
func (h *showHooks) TokenRefreshed(string) {}

func recvEvent(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return eventbus.Event{}
	}
}

func TestHandleMessageMalformedDropped(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	rnd := &recordRenderer{}
	h := New(bus, rnd, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	h.HandleMessage(context.Background(), config.Default(), map[string]string{"payload": "{broken"})

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v for malformed payload", e)
	case <-time.After(50 * time.Millisecond):
	}
	if rnd.shownCount() != 0 {
		t.Fatal("malformed payload must not render")
	}
}

func TestHandleMessageSilentByDefault(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	rnd := &recordRenderer{}
	h := New(bus, rnd, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	// Default hooks never show.
	h.HandleMessage(context.Background(), config.Default(), map[string]string{"title": "T"})

	e := recvEvent(t, ch)
	if e.Type != eventbus.Received {
		t.Fatalf("event = %v, want received", e.Type)
	}
	if rnd.shownCount() != 0 {
		t.Fatal("nothing should render without an opt-in hook")
	}
}

func TestHandleMessageRendersWhenHookAgrees(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	rnd := &recordRenderer{}
	h := New(bus, rnd, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	hooks := &showHooks{show: true}
	cfg := config.Default()
	cfg.Hooks = hooks
	cfg.Channels = []channel.Channel{{ID: "promo", Importance: channel.ImportanceMax}}

	h.HandleMessage(context.Background(), cfg, map[string]string{"title": "T", "channel": "promo"})

	if rnd.shownCount() != 1 {
		t.Fatalf("shown = %d, want 1", rnd.shownCount())
	}
	if rnd.lastEff.Importance != channel.ImportanceMax {
		t.Fatalf("effective importance = %q, want max", rnd.lastEff.Importance)
	}
	if e := recvEvent(t, ch); e.Type != eventbus.Received {
		t.Fatalf("event = %v, want received", e.Type)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.received) != 1 {
		t.Fatalf("received callbacks = %d, want 1", len(hooks.received))
	}
}

func TestHandleMessageRendererErrorSwallowed(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	rnd := &recordRenderer{fail: errors.New("tray unavailable")}
	h := New(bus, rnd, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	cfg := config.Default()
	cfg.Hooks = &showHooks{show: true}

	h.HandleMessage(context.Background(), cfg, map[string]string{"title": "T"})

	// The received event still fires even when rendering failed.
	if e := recvEvent(t, ch); e.Type != eventbus.Received {
		t.Fatalf("event = %v, want received", e.Type)
	}
}

func TestHandleMessageScheduledPath(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	rnd := &recordRenderer{}
	h := New(bus, rnd, logx.Nop())

	cfg := config.Default()
	cfg.Hooks = &showHooks{show: true}

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)
	h.HandleMessage(context.Background(), cfg, map[string]string{
		"title":       "T",
		"schedule_at": at,
	})

	if rnd.scheduledCount() != 1 {
		t.Fatalf("scheduled = %d, want 1", rnd.scheduledCount())
	}
	if rnd.shownCount() != 0 {
		t.Fatal("scheduled messages must not be shown immediately")
	}
}

func TestHandleSelected(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	h := New(bus, nil, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	hooks := &showHooks{}
	cfg := config.Default()
	cfg.Hooks = hooks

	h.HandleSelected(context.Background(), cfg, map[string]string{"id": "m1", "title": "T"})

	e := recvEvent(t, ch)
	if e.Type != eventbus.Tapped {
		t.Fatalf("event = %v, want tapped", e.Type)
	}
	if e.Message == nil || e.Message.ID != "m1" {
		t.Fatalf("tapped event message = %+v", e.Message)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.selected) != 1 {
		t.Fatalf("selected callbacks = %d, want 1", len(hooks.selected))
	}
}

func TestHandleSelectedMalformedDropped(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	defer bus.Close()
	h := New(bus, nil, logx.Nop())

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	h.HandleSelected(context.Background(), config.Default(), nil)

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
