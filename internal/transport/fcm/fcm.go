// Package fcm implements the transport.Sender contract on Firebase Cloud
// Messaging.
package fcm

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"pushkit/internal/transport"
	"pushkit/pkg/logx"
)

type Config struct {
	// CredentialsFile points at a service-account JSON file. Empty falls
	// back to application-default credentials.
	CredentialsFile string
	ProjectID       string
	// DeviceTokens are the registrations managed by topic subscribe /
	// unsubscribe calls. Token() reports the first one.
	DeviceTokens []string
}

type Sender struct {
	mc     *messaging.Client
	tokens []string
	log    logx.Logger
}

var _ transport.Sender = (*Sender)(nil)

func New(ctx context.Context, cfg Config, log logx.Logger) (*Sender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fc *firebase.Config
	if cfg.ProjectID != "" {
		fc = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fc, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	log.Info("fcm sender initialized", logx.String("project", cfg.ProjectID))
	return &Sender{mc: mc, tokens: append([]string(nil), cfg.DeviceTokens...), log: log}, nil
}

func (s *Sender) Send(ctx context.Context, target, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	}
	if topic, ok := strings.CutPrefix(target, transport.TopicPrefix); ok {
		msg.Topic = topic
	} else {
		msg.Token = target
	}

	id, err := s.mc.Send(ctx, msg)
	if err != nil {
		return transport.Wrap(transport.Classify(err), err)
	}
	s.log.Debug("fcm message sent", logx.String("response", id))
	return nil
}

func (s *Sender) SubscribeTopic(ctx context.Context, name string) error {
	if len(s.tokens) == 0 {
		return nil
	}
	resp, err := s.mc.SubscribeToTopic(ctx, s.tokens, name)
	if err != nil {
		return transport.Wrap(transport.Classify(err), err)
	}
	if resp.FailureCount > 0 {
		s.log.Warn("topic subscribe partial failure",
			logx.String("topic", name), logx.Int("failures", resp.FailureCount))
	}
	return nil
}

func (s *Sender) UnsubscribeTopic(ctx context.Context, name string) error {
	if len(s.tokens) == 0 {
		return nil
	}
	resp, err := s.mc.UnsubscribeFromTopic(ctx, s.tokens, name)
	if err != nil {
		return transport.Wrap(transport.Classify(err), err)
	}
	if resp.FailureCount > 0 {
		s.log.Warn("topic unsubscribe partial failure",
			logx.String("topic", name), logx.Int("failures", resp.FailureCount))
	}
	return nil
}

func (s *Sender) Token(ctx context.Context) (string, error) {
	if len(s.tokens) == 0 {
		return "", nil
	}
	return s.tokens[0], nil
}
