// Package channel models notification display channels and resolves the
// effective display attributes for a message.
//
// A channel's nullable flags mean "inherit from the default channel"; the
// default channel itself falls back to hard baselines. Resolution is pure:
// it never fails and never caches, so a config swap is picked up on the
// next call.
package channel

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSetup = errors.New("channel setup failed")

// Importance mirrors the platform tray importance ladder.
// The zero value means "inherit".
type Importance string

const (
	ImportanceNone    Importance = "none"
	ImportanceMin     Importance = "min"
	ImportanceLow     Importance = "low"
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
	ImportanceMax     Importance = "max"
)

// Channel is a named display configuration. Pointer fields are tri-state:
// nil inherits from the default channel.
type Channel struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	PlaySound       *bool      `json:"play_sound,omitempty"`
	ShowBadge       *bool      `json:"show_badge,omitempty"`
	EnableVibration *bool      `json:"enable_vibration,omitempty"`
	EnableLights    *bool      `json:"enable_lights,omitempty"`
	LEDColor        *uint32    `json:"led_color,omitempty"`
	Sound           string     `json:"sound,omitempty"`
	Importance      Importance `json:"importance,omitempty"`
}

// Group names a set of related channels.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Effective is a fully-populated display attribute set: every field has a
// concrete value after merging a named channel over the default channel and
// the baselines.
type Effective struct {
	ID          string
	GroupID     string
	Name        string
	Description string

	PlaySound       bool
	ShowBadge       bool
	EnableVibration bool
	EnableLights    bool
	LEDColor        uint32
	Sound           string
	Importance      Importance
}

// Resolve merges the channel named name over def and the baselines.
//
// An unknown (or empty) name falls back to the default channel verbatim.
// That is deliberate policy: delivery is never blocked by a misconfigured
// channel name.
func Resolve(def Channel, channels []Channel, name string) Effective {
	matched := def
	for _, c := range channels {
		if c.ID == name {
			matched = c
			break
		}
	}

	eff := Effective{
		ID:          matched.ID,
		GroupID:     firstNonEmpty(matched.GroupID, def.GroupID),
		Name:        firstNonEmpty(matched.Name, def.Name),
		Description: firstNonEmpty(matched.Description, def.Description),

		PlaySound:       mergeBool(matched.PlaySound, def.PlaySound, true),
		ShowBadge:       mergeBool(matched.ShowBadge, def.ShowBadge, true),
		EnableVibration: mergeBool(matched.EnableVibration, def.EnableVibration, true),
		EnableLights:    mergeBool(matched.EnableLights, def.EnableLights, false),
		Sound:           firstNonEmpty(matched.Sound, def.Sound),
	}
	if matched.LEDColor != nil {
		eff.LEDColor = *matched.LEDColor
	} else if def.LEDColor != nil {
		eff.LEDColor = *def.LEDColor
	}
	eff.Importance = matched.Importance
	if eff.Importance == "" {
		eff.Importance = def.Importance
	}
	if eff.Importance == "" {
		eff.Importance = ImportanceDefault
	}
	return eff
}

// Override applies message-level overrides on top of a resolved channel.
// Message values win over everything the channel merge produced.
func (e Effective) Override(importance Importance, playSound *bool) Effective {
	if importance != "" {
		e.Importance = importance
	}
	if playSound != nil {
		e.PlaySound = *playSound
	}
	return e
}

// Validate checks the registered channel list for setup mistakes that should
// fail init: empty IDs and duplicate registrations.
func Validate(def Channel, channels []Channel) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("%w: default channel has no id", ErrSetup)
	}
	seen := map[string]bool{}
	for _, c := range channels {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("%w: channel with empty id", ErrSetup)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate channel id %q", ErrSetup, id)
		}
		seen[id] = true
	}
	return nil
}

// Bool is a literal helper for the tri-state pointer fields.
func Bool(v bool) *bool { return &v }

// Color is a literal helper for LEDColor.
func Color(v uint32) *uint32 { return &v }

func mergeBool(specific, def *bool, baseline bool) bool {
	if specific != nil {
		return *specific
	}
	if def != nil {
		return *def
	}
	return baseline
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
