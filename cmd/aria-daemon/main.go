package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aria/internal/assistant"
	"aria/internal/browser"
	"aria/internal/bus"
	"aria/internal/config"
	"aria/internal/gateway"
	"aria/internal/ipc"
	"aria/internal/mail"
	"aria/internal/nlu"
	"aria/internal/proxy"
	"aria/internal/speech"
	"aria/internal/sysact"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	cfg := config.Load()

	if cfg.OpenAIKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey)}
	if cfg.ProxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(cfg.ProxyAddr, cfg.ProxyTimeout)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", cfg.ProxyAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	oracle := nlu.New(openai.NewClient(opts...))

	log.Debug("Loaded oracle")

	var notifier assistant.Notifier = bus.Nop{}
	if cfg.BusURL != "" {
		if b, err := bus.New(cfg.BusURL); err != nil {
			log.Warn("UI bus unavailable, running headless", "url", cfg.BusURL, "err", err)
		} else {
			notifier = b
			defer b.Close()
		}
	}

	voice := speech.NewExec(cfg.Speech.SpeakCmd, cfg.Speech.ListenCmd)

	worker := mail.NewWorker(newSender(cfg.Mail), mail.Config{
		BatchSize:        cfg.Mail.BatchSize,
		BatchInterval:    cfg.Mail.BatchInterval,
		PollInterval:     cfg.Mail.PollInterval,
		RetryLimit:       cfg.Mail.RetryLimit,
		RetryDelay:       cfg.Mail.RetryDelay,
		DrainQueueOnStop: cfg.Mail.DrainQueueOnStop,
	})
	if err := mail.Instrument(worker); err != nil {
		log.Warn("Failed to register mail metrics", "err", err)
	}
	worker.Start()
	defer worker.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	videos := browser.NewController(
		func(ctx context.Context) (browser.Driver, error) {
			return browser.NewChromeDriver(ctx, cfg.Browser.Headless)
		},
		nil,
		browser.Config{
			SearchLimit:   cfg.Browser.SearchLimit,
			PlayerTimeout: cfg.Browser.PlayerTimeout,
			JitterMin:     browser.DefaultJitterMin,
			JitterMax:     browser.DefaultJitterMax,
		},
	)
	defer videos.Close(context.Background())

	sys := sysact.New()
	confirmer := assistant.NewVoiceConfirmer(cfg.Session, voice, voice, oracle)
	gw := gateway.New(voice, cfg.Session.SpeakTimeout, sys, videos, worker, confirmer, cfg.Mail.Address)
	session := assistant.NewSession(cfg.Session, voice, voice, oracle, gw, notifier)

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "trigger":
			go session.Start(ctx)
		case "stop":
			session.Stop()
		case "mail-pause":
			worker.Pause()
		case "mail-resume":
			worker.Resume()
		case "media-playpause", "media-next", "media-previous":
			key := strings.TrimPrefix(msg.Cmd, "media-")
			if err := sys.MediaKey(ctx, key); err != nil {
				log.Warn("Media key failed", "key", key, "err", err)
			}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	<-ctx.Done()
	log.Info("Shutting down")
	session.Stop()
}

// newSender falls back to a logging stub when no SMTP account is
// configured, so the worker still drains its queue in dev setups.
func newSender(cfg config.Mail) mail.Sender {
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		Server:   cfg.Server,
		Port:     cfg.Port,
	}, mail.NewTemplates(cfg.TemplateDir))
	if err != nil {
		log.Warn("Email not configured, outbound mail will fail", "err", err)
		return mail.Unconfigured{}
	}
	return sender
}
