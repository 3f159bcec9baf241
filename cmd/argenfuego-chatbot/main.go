package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/api"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/bot"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/config"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/email"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/lockfile"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/messaging"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/metawhatsapp"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/nlu"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/notify"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/store"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/twiliowhatsapp"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for chatbot state data
	DefaultStateDir = "/var/lib/argenfuego-chatbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "chatbot.db"
	// DefaultChannel is the messaging channel used when none is configured
	DefaultChannel = "whatsmeow"
)

func main() {
	initializeLogger()

	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(cfg)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	profile, err := config.Load(*flags.profilePath)
	if err != nil {
		slog.Error("Failed to load company profile", "error", err)
		os.Exit(1)
	}

	svc, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to build messaging service", "error", err)
		os.Exit(1)
	}
	archive, err := buildArchive(flags)
	if err != nil {
		slog.Error("Failed to open archive store", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	botOpts := buildBotOptions(flags, profile, archive)
	b := bot.New(profile, svc, botOpts...)
	server := api.NewServer(b, svc, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping chatbot", "channel", *flags.channel, "company", profile.CompanyName)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Chatbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Chatbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Channel     string
	ProfilePath string
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	SweepCron   string
}

// Flags holds command line flag values
type Flags struct {
	channel     *string
	profilePath *string
	dbDSN       *string
	stateDir    *string
	openaiKey   *string
	apiAddr     *string
	sweepCron   *string
	qrOutput    *string
	numeric     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		Channel:     os.Getenv("CHATBOT_CHANNEL"),
		ProfilePath: os.Getenv("COMPANY_PROFILE"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("CHATBOT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		SweepCron:   os.Getenv("SWEEP_CRON"),
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
		slog.Debug("No CHATBOT_CHANNEL set, using default", "channel", cfg.Channel)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No CHATBOT_STATE_DIR set, using default", "state_dir", cfg.StateDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"CHATBOT_CHANNEL", cfg.Channel,
		"COMPANY_PROFILE", cfg.ProfilePath,
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"CHATBOT_STATE_DIR", cfg.StateDir,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"API_ADDR", cfg.APIAddr,
		"SWEEP_CRON", cfg.SweepCron)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		channel:     flag.String("channel", cfg.Channel, "messaging channel: whatsmeow, twilio or meta (overrides $CHATBOT_CHANNEL)"),
		profilePath: flag.String("profile", cfg.ProfilePath, "path to the company profile YAML (overrides $COMPANY_PROFILE)"),
		dbDSN:       flag.String("db-dsn", cfg.DatabaseURL, "database DSN for the archive store (overrides $DATABASE_URL)"),
		stateDir:    flag.String("state-dir", cfg.StateDir, "state directory for chatbot data (overrides $CHATBOT_STATE_DIR)"),
		openaiKey:   flag.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key for intent classification (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepCron:   flag.String("sweep-cron", cfg.SweepCron, "cron expression for the inactivity sweep (overrides $SWEEP_CRON)"),
		qrOutput:    flag.String("qr-output", "", "path to write the whatsmeow login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use a numeric whatsmeow login code instead of a QR code"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"channel", *flags.channel,
		"profile", *flags.profilePath,
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"sweepCron", *flags.sweepCron)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	return nil
}

// buildMessagingService picks the WhatsApp channel implementation.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	case "meta":
		client, err := metawhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewMetaService(client, os.Getenv("META_VERIFY_TOKEN"), os.Getenv("META_APP_SECRET")), nil
	case "whatsmeow":
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsmeowService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging channel %q", *flags.channel)
	}
}

// buildArchive opens the lead and survey archive on the configured DSN.
func buildArchive(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildBotOptions wires the optional collaborators: intent classification,
// lead email and Slack notifications.
func buildBotOptions(flags Flags, profile config.CompanyProfile, archive store.Store) []bot.Option {
	opts := []bot.Option{bot.WithArchive(archive)}

	if *flags.openaiKey != "" {
		engine, err := nlu.NewOpenAIEngine(nlu.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("OpenAI engine unavailable, falling back to rules only", "error", err)
		} else {
			opts = append(opts, bot.WithResolver(nlu.NewResolver(engine)))
		}
	}

	if os.Getenv("SENDGRID_API_KEY") != "" && profile.LeadEmailTo != "" {
		sender, err := email.NewSendGridSender(
			email.WithRecipient(profile.LeadEmailTo),
			email.WithSender(profile.LeadEmailFrom, profile.BotName),
		)
		if err != nil {
			slog.Warn("Lead email unavailable, leads will only be archived", "error", err)
		} else {
			opts = append(opts, bot.WithLeadSender(sender))
		}
	} else {
		slog.Debug("Lead email not configured, leads will only be archived")
	}

	if n := notify.NewNotifier(""); n != nil {
		opts = append(opts, bot.WithNotifier(n))
	}

	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sweepCron != "" {
		apiOpts = append(apiOpts, api.WithSweepCron(*flags.sweepCron))
	}
	return apiOpts
}
