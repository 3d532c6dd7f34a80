// Package telegram implements the transport.Sender contract on the Telegram
// Bot API. Targets are chat IDs; topic targets broadcast to the configured
// chat list. Useful for deployments that have no push credentials but still
// want deliveries to land somewhere observable.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pushkit/internal/transport"
	"pushkit/pkg/logx"
)

type Config struct {
	Token string
	// Chats receive topic-targeted sends.
	Chats []int64
}

type Sender struct {
	bot   *tele.Bot
	chats []int64
	log   logx.Logger
}

var _ transport.Sender = (*Sender)(nil)

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Sender{bot: b, chats: append([]int64(nil), cfg.Chats...), log: log}, nil
}

func (s *Sender) Send(ctx context.Context, target, title, body string, data map[string]string) error {
	text := title
	if body != "" {
		if text != "" {
			text += "\n"
		}
		text += body
	}

	if topic, ok := strings.CutPrefix(target, transport.TopicPrefix); ok {
		if len(s.chats) == 0 {
			s.log.Warn("topic send with no chats configured", logx.String("topic", topic))
			return nil
		}
		var last error
		for _, id := range s.chats {
			if err := s.sendChat(ctx, id, text); err != nil {
				last = err
			}
		}
		return last
	}

	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return transport.Wrap(transport.KindUnknown, fmt.Errorf("bad chat target %q: %w", target, err))
	}
	return s.sendChat(ctx, id, text)
}

func (s *Sender) sendChat(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return transport.Wrap(transport.Classify(err), err)
	}
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return transport.Wrap(transport.Classify(err), err)
	}
	return nil
}

// SubscribeTopic is a no-op: chat membership is managed on the Telegram
// side, topic sends always go to the configured chat list.
func (s *Sender) SubscribeTopic(ctx context.Context, name string) error {
	s.log.Debug("topic subscribe ignored", logx.String("topic", name))
	return nil
}

func (s *Sender) UnsubscribeTopic(ctx context.Context, name string) error {
	s.log.Debug("topic unsubscribe ignored", logx.String("topic", name))
	return nil
}

func (s *Sender) Token(ctx context.Context) (string, error) {
	if s.bot.Me == nil {
		return "", nil
	}
	return strconv.FormatInt(s.bot.Me.ID, 10), nil
}
