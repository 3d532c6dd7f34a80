// Package message defines the immutable notification value object and the
// data-payload codec used on the transport boundary.
package message

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	"pushkit/internal/channel"
)

var (
	// ErrInvalid marks a construction-time contract violation.
	ErrInvalid = errors.New("invalid message")
	// ErrDecode marks a malformed inbound payload. Terminal for that payload.
	ErrDecode = errors.New("malformed notification payload")
)

// Message describes one notification occurrence. Values are immutable after
// New: updates produce a new value via field-wise copy, and the dispatch
// fan-out only ever reads it.
type Message struct {
	// ID is the opaque unique identity, generated if absent.
	ID string `json:"id"`
	// NotificationID is the int32 handle used by the platform tray.
	// Derived deterministically from ID if absent, so it stays stable
	// across retries of the same logical message.
	NotificationID int32 `json:"notificationId"`

	Recipients []string `json:"recipients,omitempty"`
	Topic      string   `json:"topic,omitempty"`

	Channel string `json:"channel,omitempty"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`

	// Optional per-message overrides of channel defaults.
	Importance channel.Importance `json:"importance,omitempty"`
	PlaySound  *bool              `json:"playSound,omitempty"`

	// ScheduleAt switches delivery from "show now" to "schedule".
	ScheduleAt *time.Time `json:"scheduleAt,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Seen is mutated only by the history store, never by dispatch.
	Seen bool `json:"seen"`

	// Payload is passed through unmodified.
	Payload map[string]string `json:"payload,omitempty"`
}

// New validates m and fills defaults, returning an independent copy.
//
// Invariants:
//   - at least one of Recipients/Topic is set (both together are valid;
//     the topic wins at dispatch time)
//   - at least one of Title/Body is set
func New(m Message) (Message, error) {
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.NotificationID == 0 {
		m.NotificationID = DeriveNotificationID(m.ID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Recipients = append([]string(nil), m.Recipients...)
	if m.Payload != nil {
		cp := make(map[string]string, len(m.Payload))
		for k, v := range m.Payload {
			cp[k] = v
		}
		m.Payload = cp
	}
	return m, nil
}

// Validate checks the construction invariants without mutating m.
func (m Message) Validate() error {
	if len(m.Recipients) == 0 && m.Topic == "" {
		return fmt.Errorf("%w: needs recipients or a topic", ErrInvalid)
	}
	if m.Title == "" && m.Body == "" {
		return fmt.Errorf("%w: needs a title or a body", ErrInvalid)
	}
	return nil
}

// WithSeen returns a copy of m with the seen flag set.
func (m Message) WithSeen(seen bool) Message {
	m.Seen = seen
	return m
}

// DeriveNotificationID maps an opaque id to a stable, positive int32
// tray handle.
func DeriveNotificationID(id string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	n := int32(h.Sum32() & 0x7fffffff)
	if n == 0 {
		n = 1
	}
	return n
}
