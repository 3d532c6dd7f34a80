package message

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"pushkit/internal/channel"
)

// Payload keys on the transport data payload. Every value is a string;
// structured fields are JSON-encoded.
const (
	keyID             = "id"
	keyNotificationID = "notification_id"
	keyRecipients     = "recipients"
	keyTopic          = "topic"
	keyChannel        = "channel"
	keyTitle          = "title"
	keyBody           = "body"
	keyImportance     = "importance"
	keyPlaySound      = "play_sound"
	keyScheduleAt     = "schedule_at"
	keyTimezone       = "timezone"
	keyCreatedAt      = "created_at"
	keyPayload        = "payload"
)

// Encode flattens m into the string map sent as the transport data payload.
func Encode(m Message) map[string]string {
	out := map[string]string{
		keyID:             m.ID,
		keyNotificationID: strconv.FormatInt(int64(m.NotificationID), 10),
		keyCreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(m.Recipients) > 0 {
		b, _ := json.Marshal(m.Recipients)
		out[keyRecipients] = string(b)
	}
	if m.Topic != "" {
		out[keyTopic] = m.Topic
	}
	if m.Channel != "" {
		out[keyChannel] = m.Channel
	}
	if m.Title != "" {
		out[keyTitle] = m.Title
	}
	if m.Body != "" {
		out[keyBody] = m.Body
	}
	if m.Importance != "" {
		out[keyImportance] = string(m.Importance)
	}
	if m.PlaySound != nil {
		out[keyPlaySound] = strconv.FormatBool(*m.PlaySound)
	}
	if m.ScheduleAt != nil {
		out[keyScheduleAt] = m.ScheduleAt.UTC().Format(time.RFC3339Nano)
		if m.Timezone != "" {
			out[keyTimezone] = m.Timezone
		}
	}
	if len(m.Payload) > 0 {
		b, _ := json.Marshal(m.Payload)
		out[keyPayload] = string(b)
	}
	return out
}

// Decode parses an inbound transport data payload into a Message.
//
// It requires well-formed fields and at least one of title/body, but not the
// routing fields: a payload delivered to this device legitimately omits its
// own recipient list. Failures return ErrDecode and the payload is dropped
// by the caller.
func Decode(data map[string]string) (Message, error) {
	if data == nil {
		return Message{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	m := Message{
		ID:      data[keyID],
		Topic:   data[keyTopic],
		Channel: data[keyChannel],
		Title:   data[keyTitle],
		Body:    data[keyBody],
	}
	if m.Title == "" && m.Body == "" {
		return Message{}, fmt.Errorf("%w: needs a title or a body", ErrDecode)
	}

	if raw := data[keyNotificationID]; raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Message{}, fmt.Errorf("%w: notification_id: %v", ErrDecode, err)
		}
		m.NotificationID = int32(n)
	}
	if raw := data[keyRecipients]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Recipients); err != nil {
			return Message{}, fmt.Errorf("%w: recipients: %v", ErrDecode, err)
		}
	}
	if raw := data[keyImportance]; raw != "" {
		m.Importance = channel.Importance(raw)
	}
	if raw := data[keyPlaySound]; raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Message{}, fmt.Errorf("%w: play_sound: %v", ErrDecode, err)
		}
		m.PlaySound = &v
	}
	if raw := data[keyScheduleAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Message{}, fmt.Errorf("%w: schedule_at: %v", ErrDecode, err)
		}
		m.ScheduleAt = &t
		m.Timezone = data[keyTimezone]
	}
	if raw := data[keyCreatedAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Message{}, fmt.Errorf("%w: created_at: %v", ErrDecode, err)
		}
		m.CreatedAt = t
	}
	if raw := data[keyPayload]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Payload); err != nil {
			return Message{}, fmt.Errorf("%w: payload: %v", ErrDecode, err)
		}
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
	return m, nil
}
