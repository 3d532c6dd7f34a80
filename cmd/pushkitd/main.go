package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"pushkit/internal/app"
	"pushkit/internal/config"
	"pushkit/internal/eventbus"
	"pushkit/internal/history"
	"pushkit/internal/render"
	"pushkit/internal/transport"
	"pushkit/internal/transport/fcm"
	"pushkit/internal/transport/telegram"
	"pushkit/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	// Local credentials (FCM key path, bot token) commonly live in .env.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig(cfg.Logging.File),
	})
	defer logSvc.Close()

	sender, err := newSender(ctx, *cfg, log)
	if err != nil {
		return err
	}

	store, err := history.Open(history.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	bus := eventbus.New()
	renderer := render.NewLog(log.With(logx.String("comp", "render")))

	center := app.New(*cfg, sender, renderer, store, bus, log)
	if err := center.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer center.Close(context.Background())

	retention, err := history.NewRetention(store, cfg.Retention.Schedule, cfg.Retention.MaxAge.Std(), log)
	if err != nil {
		return fmt.Errorf("retention schedule: %w", err)
	}
	retention.Start()
	defer retention.Stop()

	// Live reload: committed config swaps apply to the center and the log
	// sinks; in-flight dispatches keep their snapshot.
	sub := mgr.Subscribe(1)
	defer mgr.Unsubscribe(sub)
	go func() {
		if err := mgr.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		for next := range sub {
			if next == nil {
				continue
			}
			center.Apply(*next)
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File:    logx.FileConfig(next.Logging.File),
			})
		}
	}()

	// Mirror the event stream into the log so operators can follow
	// deliveries without attaching a consumer.
	events, unsub := bus.Subscribe(64)
	defer unsub()
	go func() {
		for e := range events {
			f := []logx.Field{logx.String("event", string(e.Type))}
			if e.Message != nil {
				f = append(f, logx.String("id", e.Message.ID))
			}
			log.Info("notification event", f...)
		}
	}()

	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	log.Info("pushkitd ready", logx.String("config", cfgPath))

	<-ctx.Done()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	log.Info("pushkitd stopping")
	return nil
}

func newSender(ctx context.Context, cfg config.Config, log logx.Logger) (transport.Sender, error) {
	switch cfg.Transport.Driver {
	case "fcm":
		return fcm.New(ctx, fcm.Config{
			CredentialsFile: cfg.Transport.FCM.CredentialsFile,
			ProjectID:       cfg.Transport.FCM.ProjectID,
			DeviceTokens:    cfg.Transport.FCM.DeviceTokens,
		}, log.With(logx.String("comp", "fcm")))
	case "telegram":
		return telegram.New(telegram.Config{
			Token: cfg.Transport.Telegram.Token,
			Chats: cfg.Transport.Telegram.Chats,
		}, log.With(logx.String("comp", "telegram")))
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}
}
