package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/database"
	"github.com/campuslink/campuslink/handlers"
	"github.com/campuslink/campuslink/l10n"
	"github.com/campuslink/campuslink/mail"
	"github.com/campuslink/campuslink/settings"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := newLogger(cfg)

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	store := database.NewStore(pool)

	set, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open settings store")
	}
	defer set.Close()

	formatter := l10n.New(log)
	if err := formatter.LoadDir(cfg.L10n.Dir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.L10n.Dir).Msg("failed to load locale bundles")
	}

	mailer := mail.NewSMTP(mail.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.FromEmail,
	}, log)

	bot := handlers.New(handlers.Options{
		Store:          store,
		Settings:       set,
		Formatter:      formatter,
		Mailer:         mailer,
		Log:            log,
		OwnerID:        cfg.Discord.OwnerID,
		OTPTimeout:     cfg.OTPTimeout(),
		OTPMaxAttempts: cfg.OTP.MaxAttempts,
	})

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	bot.Attach(session)

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to open gateway connection")
	}
	defer session.Close()
	log.Info().Msg("bot is running, press Ctrl+C to exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
