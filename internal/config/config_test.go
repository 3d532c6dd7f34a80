package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pushkit/internal/message"
	"pushkit/pkg/logx"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
max_retries: 5
retry_delay: 250ms
default_channel:
  id: default
  name: Default
channels:
  - id: promo
    name: Promotions
    importance: high
transport:
  driver: fcm
  fcm:
    project_id: demo
    device_tokens: [tok1, tok2]
  rate_per_sec: 10
storage:
  driver: sqlite
  path: ./history.db
retention:
  schedule: "0 3 * * *"
  max_age: 720h
logging:
  level: debug
  console: true
`)

	mgr := NewManager(path, logx.Nop())
	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay.Std() != 250*time.Millisecond {
		t.Fatalf("RetryDelay = %v", cfg.RetryDelay.Std())
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0].ID != "promo" {
		t.Fatalf("Channels = %+v", cfg.Channels)
	}
	if cfg.Transport.Driver != "fcm" || cfg.Transport.FCM.ProjectID != "demo" {
		t.Fatalf("Transport = %+v", cfg.Transport)
	}
	if len(cfg.Transport.FCM.DeviceTokens) != 2 {
		t.Fatalf("DeviceTokens = %v", cfg.Transport.FCM.DeviceTokens)
	}
	if cfg.Transport.RatePerSec != 10 {
		t.Fatalf("RatePerSec = %d", cfg.Transport.RatePerSec)
	}
	if cfg.Retention.MaxAge.Std() != 720*time.Hour {
		t.Fatalf("MaxAge = %v", cfg.Retention.MaxAge.Std())
	}
	if mgr.Get() != cfg {
		t.Fatal("Load should commit the parsed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
max_retries: 1
default_channel:
  id: default
not_a_field: true
`)

	if _, err := NewManager(path, logx.Nop()).Parse(); err == nil {
		t.Fatal("unknown fields must be rejected")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", "retry_delay: soonish\n")
	if _, err := NewManager(path, logx.Nop()).Parse(); err == nil {
		t.Fatal("bad duration must be rejected")
	}
}

func TestParseJSONFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"max_retries": 2, "default_channel": {"id": "default"}, "transport": {"driver": "telegram"}}`)
	cfg, err := NewManager(path, logx.Nop()).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MaxRetries != 2 || cfg.Transport.Driver != "telegram" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestDurationJSON(t *testing.T) {
	t.Parallel()
	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Fatalf("d = %v", d.Std())
	}

	b, err := json.Marshal(Duration(5 * time.Second))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"5s"` {
		t.Fatalf("marshal = %s", b)
	}

	if err := json.Unmarshal([]byte(`""`), &d); err != nil {
		t.Fatalf("empty string: %v", err)
	}
	if d != 0 {
		t.Fatalf("empty duration = %v, want 0", d)
	}
}

func TestNormalizedDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.Normalized()

	if cfg.RetryDelay.Std() != DefaultRetryDelay {
		t.Fatalf("RetryDelay = %v, want %v", cfg.RetryDelay.Std(), DefaultRetryDelay)
	}
	if cfg.DefaultChannel.ID != "default" {
		t.Fatalf("DefaultChannel.ID = %q", cfg.DefaultChannel.ID)
	}
	if cfg.Hooks == nil {
		t.Fatal("Hooks should default to NopHooks")
	}
	if cfg.Hooks.ShouldShow(message.Message{}) {
		t.Fatal("default hooks must not show")
	}
	if cfg.UserID == nil || cfg.UserID() != "" {
		t.Fatal("UserID should default to the empty scope")
	}
}

func TestAttemptsClamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		retries int
		want    int
	}{
		{retries: -1, want: 1},
		{retries: 0, want: 1},
		{retries: 1, want: 1},
		{retries: 4, want: 4},
	}
	for _, tt := range tests {
		if got := (Config{MaxRetries: tt.retries}).Attempts(); got != tt.want {
			t.Fatalf("Attempts(%d) = %d, want %d", tt.retries, got, tt.want)
		}
	}
}

func TestManagerPublishDropsStale(t *testing.T) {
	t.Parallel()
	m := NewManager("", logx.Nop())
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	old := &Config{MaxRetries: 1}
	next := &Config{MaxRetries: 2}
	m.publish(old)
	m.publish(next) // buffer full: stale value replaced

	got := <-ch
	if got.MaxRetries != 2 {
		t.Fatalf("MaxRetries = %d, want the newest config", got.MaxRetries)
	}
}
