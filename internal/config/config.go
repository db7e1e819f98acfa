// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
	Reviews   ReviewsConfig
	SMTP      SMTPConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// AdminConfig seeds the initial admin account on startup when both are set.
type AdminConfig struct {
	Email    string
	Password string
}

// RateLimitConfig holds the three fixed-window limiters.
type RateLimitConfig struct {
	LoginAttempts     int
	LoginWindow       time.Duration
	ReviewAttempts    int
	ReviewWindow      time.Duration
	CodeCheckAttempts int
	CodeCheckWindow   time.Duration
	CleanupInterval   time.Duration
}

type ReviewsConfig struct {
	SpamPolicy string // reject, flag
}

// SMTPConfig configures review notifications. Notifications are disabled
// when Host or NotifyEmail is empty.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	TLS         bool
	NotifyEmail string
}

// Enabled reports whether enough is configured to send notifications.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.NotifyEmail != ""
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Admin: AdminConfig{
			Email:    cmd.String("admin-email"),
			Password: cmd.String("admin-password"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts:     int(cmd.Int("login-max-attempts")),
			LoginWindow:       cmd.Duration("login-window"),
			ReviewAttempts:    int(cmd.Int("review-max-attempts")),
			ReviewWindow:      cmd.Duration("review-window"),
			CodeCheckAttempts: int(cmd.Int("codecheck-max-attempts")),
			CodeCheckWindow:   cmd.Duration("codecheck-window"),
			CleanupInterval:   cmd.Duration("ratelimit-cleanup-interval"),
		},
		Reviews: ReviewsConfig{
			SpamPolicy: cmd.String("spam-policy"),
		},
		SMTP: SMTPConfig{
			Host:        cmd.String("smtp-host"),
			Port:        int(cmd.Int("smtp-port")),
			Username:    cmd.String("smtp-username"),
			Password:    cmd.String("smtp-password"),
			From:        cmd.String("smtp-from"),
			FromName:    cmd.String("smtp-from-name"),
			TLS:         cmd.Bool("smtp-tls"),
			NotifyEmail: cmd.String("notify-email"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// SecureCookies reports whether the public URL is served over HTTPS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

// TLS is terminated by a reverse proxy in front of the server, so the
// derived URL is plain HTTP unless BaseURL says otherwise.
func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
	}
	flags = append(flags, DatabaseFlags()...)
	flags = append(flags,
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_reviewgate_admin",
			Usage:   "Admin session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   28800, // 8 hours in seconds
			Usage:   "Admin session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		// Admin seed
		&cli.StringFlag{
			Name:    "admin-email",
			Usage:   "Admin account created on startup if missing",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_EMAIL"), toml.TOML("admin.email", configFile)),
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Password for the seeded admin account",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_PASSWORD"), toml.TOML("admin.password", configFile)),
		},
		// Rate limits
		&cli.IntFlag{
			Name:    "login-max-attempts",
			Value:   5,
			Usage:   "Failed admin logins allowed per window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOGIN_MAX_ATTEMPTS"), toml.TOML("ratelimit.login_max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "login-window",
			Value:   15 * time.Minute,
			Usage:   "Admin login rate limit window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOGIN_WINDOW"), toml.TOML("ratelimit.login_window", configFile)),
		},
		&cli.IntFlag{
			Name:    "review-max-attempts",
			Value:   3,
			Usage:   "Review submissions allowed per code per window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REVIEW_MAX_ATTEMPTS"), toml.TOML("ratelimit.review_max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "review-window",
			Value:   time.Hour,
			Usage:   "Review submission rate limit window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REVIEW_WINDOW"), toml.TOML("ratelimit.review_window", configFile)),
		},
		&cli.IntFlag{
			Name:    "codecheck-max-attempts",
			Value:   20,
			Usage:   "Code guesses allowed per client per window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CODECHECK_MAX_ATTEMPTS"), toml.TOML("ratelimit.codecheck_max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "codecheck-window",
			Value:   15 * time.Minute,
			Usage:   "Code validation rate limit window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CODECHECK_WINDOW"), toml.TOML("ratelimit.codecheck_window", configFile)),
		},
		&cli.DurationFlag{
			Name:    "ratelimit-cleanup-interval",
			Value:   5 * time.Minute,
			Usage:   "How often expired rate limit records are purged",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATELIMIT_CLEANUP_INTERVAL"), toml.TOML("ratelimit.cleanup_interval", configFile)),
		},
		// Reviews
		&cli.StringFlag{
			Name:    "spam-policy",
			Value:   "reject",
			Usage:   "What to do with submissions that look like spam (reject, flag)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SPAM_POLICY"), toml.TOML("reviews.spam_policy", configFile)),
		},
		// SMTP
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host for review notifications",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for notifications",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Reviewgate",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "notify-email",
			Usage:   "Address that receives new and flagged review notifications",
			Sources: cli.NewValueSourceChain(cli.EnvVar("NOTIFY_EMAIL"), toml.TOML("notify.email", configFile)),
		},
	)
	return flags
}

// DatabaseFlags is the subset needed by the offline maintenance commands.
func DatabaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/reviewgate.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
	}
}
