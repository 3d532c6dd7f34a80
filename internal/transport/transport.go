// Package transport defines the push-messaging boundary the dispatch engine
// sends through. Implementations live in subpackages (fcm, telegram).
package transport

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// TopicPrefix marks a topic target on the wire. The dispatcher prepends it;
// senders strip it to recognize topic sends.
const TopicPrefix = "/topics/"

// ErrorKind classifies a per-attempt send failure. The classification is
// used only for logging: all kinds retry identically.
type ErrorKind string

const (
	KindConnection     ErrorKind = "connection"
	KindConnectTimeout ErrorKind = "connect_timeout"
	KindSendTimeout    ErrorKind = "send_timeout"
	KindReceiveTimeout ErrorKind = "receive_timeout"
	KindUnknown        ErrorKind = "unknown"
)

// Error is a retryable per-attempt send failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "transport: " + string(e.Kind)
	}
	return "transport: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with a kind. Returns nil for a nil err.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Kind extracts the classification from err, defaulting to unknown.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Classify maps a raw send failure onto an ErrorKind. It is deliberately
// coarse; the kind only feeds logging.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindSendTimeout
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindConnection
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindConnectTimeout
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindConnection
	}
	return KindUnknown
}

// Sender is one delivery backend.
//
// Send targets are opaque per-device strings, or a topic name carrying
// TopicPrefix. The data payload travels unmodified alongside title/body.
type Sender interface {
	Send(ctx context.Context, target, title, body string, data map[string]string) error
	SubscribeTopic(ctx context.Context, name string) error
	UnsubscribeTopic(ctx context.Context, name string) error
	// Token returns the current registration token, empty when the
	// backend has none.
	Token(ctx context.Context) (string, error)
}
