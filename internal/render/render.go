// Package render is the platform notification-tray boundary. The core only
// needs the call contract; real renderers are platform glue with no decision
// logic, so the default implementation just logs what would be displayed.
package render

import (
	"context"
	"errors"
	"time"

	"pushkit/internal/channel"
	"pushkit/pkg/logx"
)

// ErrPermissionDenied is raised from init when the platform refuses the
// notification permission. It is never raised from Show/Schedule.
var ErrPermissionDenied = errors.New("notification permission denied")

// Renderer displays, schedules and cancels tray notifications.
//
// Show/Schedule failures are logged by callers and never retried or
// propagated further.
type Renderer interface {
	Show(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string) error
	Schedule(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string, at time.Time, tz string) error
	Cancel(ctx context.Context, id int32) error
	CancelAll(ctx context.Context) error
	// EnsurePermission reports ErrPermissionDenied when the platform
	// refuses to display notifications at all. Checked once during init.
	EnsurePermission(ctx context.Context) error
}

// Log renders to the log stream instead of a tray. The default collaborator
// on platforms without one, and handy in tests.
type Log struct {
	log logx.Logger
}

var _ Renderer = (*Log)(nil)

func NewLog(log logx.Logger) *Log { return &Log{log: log} }

func (r *Log) Show(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string) error {
	r.log.Info("notification shown",
		logx.Int32("notification_id", id),
		logx.String("title", title),
		logx.String("channel", ch.ID),
		logx.String("importance", string(ch.Importance)),
		logx.Bool("play_sound", ch.PlaySound))
	return nil
}

func (r *Log) Schedule(ctx context.Context, id int32, title, body string, ch channel.Effective, payload map[string]string, at time.Time, tz string) error {
	r.log.Info("notification scheduled",
		logx.Int32("notification_id", id),
		logx.String("title", title),
		logx.String("channel", ch.ID),
		logx.Time("at", at),
		logx.String("tz", tz))
	return nil
}

func (r *Log) Cancel(ctx context.Context, id int32) error {
	r.log.Debug("notification cancelled", logx.Int32("notification_id", id))
	return nil
}

func (r *Log) CancelAll(ctx context.Context) error {
	r.log.Debug("all notifications cancelled")
	return nil
}

func (r *Log) EnsurePermission(ctx context.Context) error { return nil }
