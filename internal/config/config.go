// Package config holds the process-wide notification settings.
//
// A Config is a single value, replaced as a whole and never partially
// mutated. Core operations snapshot the value at entry, so a concurrent swap
// never produces inconsistent reads mid-operation.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"pushkit/internal/channel"
	"pushkit/internal/message"
)

// DefaultRetryDelay is the fixed wait between delivery attempts for one
// target. Constant, not exponential.
const DefaultRetryDelay = 5 * time.Second

// Hooks are the host-app callbacks. The zero default is NopHooks: silent
// unless ShouldShow opts in.
type Hooks interface {
	// ShouldShow decides whether an inbound message is rendered locally.
	ShouldShow(m message.Message) bool
	Received(m message.Message)
	Selected(m message.Message)
	TokenRefreshed(token string)
}

// NopHooks never shows and ignores every callback.
type NopHooks struct{}

func (NopHooks) ShouldShow(message.Message) bool { return false }
func (NopHooks) Received(message.Message)        {}
func (NopHooks) Selected(message.Message)        {}
func (NopHooks) TokenRefreshed(string)           {}

// Duration is a Go duration string in config files ("5s", "1m").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type TransportConfig struct {
	// Driver selects the sender backend: "fcm" or "telegram".
	Driver string `json:"driver"`

	FCM      FCMConfig      `json:"fcm,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`

	// RatePerSec gates delivery attempts across all targets. 0 disables.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type FCMConfig struct {
	CredentialsFile string   `json:"credentials_file,omitempty"`
	ProjectID       string   `json:"project_id,omitempty"`
	DeviceTokens    []string `json:"device_tokens,omitempty"`
}

type TelegramConfig struct {
	Token string  `json:"token,omitempty"`
	Chats []int64 `json:"chats,omitempty"`
}

type StorageConfig struct {
	// Driver: "sqlite" or "none"/"" (disabled).
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

type RetentionConfig struct {
	// Schedule is a cron spec ("0 3 * * *"). Empty disables pruning.
	Schedule string   `json:"schedule,omitempty"`
	MaxAge   Duration `json:"max_age,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Config is the whole process configuration.
//
// Hooks and UserID are attached by the host application after the file is
// parsed; they are not serializable.
type Config struct {
	// MaxRetries is the total number of delivery attempts per target.
	// Values below one still mean a single attempt, no retry.
	MaxRetries int `json:"max_retries"`
	// RetryDelay is the fixed wait between attempts. Default 5s.
	RetryDelay Duration `json:"retry_delay,omitempty"`

	DefaultChannel channel.Channel   `json:"default_channel"`
	Channels       []channel.Channel `json:"channels,omitempty"`
	GroupChannels  []channel.Group   `json:"group_channels,omitempty"`

	Transport TransportConfig `json:"transport"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Retention RetentionConfig `json:"retention,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`

	UserID func() string `json:"-"`
	Hooks  Hooks         `json:"-"`
}

// Default returns the well-defined default instance.
func Default() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: Duration(DefaultRetryDelay),
		DefaultChannel: channel.Channel{
			ID:   "default",
			Name: "Default",
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Hooks:   NopHooks{},
	}
}

// Normalized fills zero fields with usable defaults. It never mutates c.
func (c Config) Normalized() Config {
	if c.RetryDelay <= 0 {
		c.RetryDelay = Duration(DefaultRetryDelay)
	}
	if c.DefaultChannel.ID == "" {
		c.DefaultChannel.ID = "default"
	}
	if c.Hooks == nil {
		c.Hooks = NopHooks{}
	}
	if c.UserID == nil {
		c.UserID = func() string { return "" }
	}
	return c
}

// Attempts is MaxRetries clamped to a minimum of one.
func (c Config) Attempts() int {
	if c.MaxRetries < 1 {
		return 1
	}
	return c.MaxRetries
}
