// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"sub.domain.localhost", true},
		{"example.com", false},
		{"www.example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name:     "localhost default port",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 80}},
			expected: "http://localhost",
		},
		{
			name:     "localhost custom port",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 8080}},
			expected: "http://localhost:8080",
		},
		{
			name:     "remote host",
			cfg:      &Config{Server: ServerConfig{Host: "reviews.example.com", Port: 9000}},
			expected: "http://reviews.example.com:9000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestSecureCookies(t *testing.T) {
	cfg := &Config{Server: ServerConfig{BaseURL: "https://reviews.example.com"}}
	assert.True(t, cfg.SecureCookies())

	cfg.Server.BaseURL = "http://localhost:8080"
	assert.False(t, cfg.SecureCookies())
}

func TestSMTPConfigEnabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.False(t, SMTPConfig{Host: "smtp.example.com"}.Enabled())
	assert.False(t, SMTPConfig{NotifyEmail: "owner@example.com"}.Enabled())
	assert.True(t, SMTPConfig{Host: "smtp.example.com", NotifyEmail: "owner@example.com"}.Enabled())
}

func TestFlags(t *testing.T) {
	flags := Flags()

	// Should have all expected flags
	assert.NotEmpty(t, flags)

	// Check for key flags
	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	assert.True(t, flagNames["host"], "should have host flag")
	assert.True(t, flagNames["port"], "should have port flag")
	assert.True(t, flagNames["base-url"], "should have base-url flag")
	assert.True(t, flagNames["log-level"], "should have log-level flag")
	assert.True(t, flagNames["database-dsn"], "should have database-dsn flag")
	assert.True(t, flagNames["review-window"], "should have review-window flag")
	assert.True(t, flagNames["spam-policy"], "should have spam-policy flag")
	assert.True(t, flagNames["notify-email"], "should have notify-email flag")
	assert.True(t, flagNames["session-cookie-name"], "should have session-cookie-name flag")
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			// Verify defaults are applied
			assert.NotNil(t, cfg)
			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "text", cfg.Log.Format)
			assert.Equal(t, "./data/reviewgate.db", cfg.Database.DSN)
			assert.Equal(t, "_reviewgate_admin", cfg.Session.CookieName)
			assert.Equal(t, 28800, cfg.Session.MaxAge) // 8 hours in seconds

			assert.Equal(t, 5, cfg.RateLimit.LoginAttempts)
			assert.Equal(t, 15*time.Minute, cfg.RateLimit.LoginWindow)
			assert.Equal(t, 3, cfg.RateLimit.ReviewAttempts)
			assert.Equal(t, time.Hour, cfg.RateLimit.ReviewWindow)
			assert.Equal(t, 20, cfg.RateLimit.CodeCheckAttempts)
			assert.Equal(t, 5*time.Minute, cfg.RateLimit.CleanupInterval)
			assert.Equal(t, "reject", cfg.Reviews.SpamPolicy)
			assert.False(t, cfg.SMTP.Enabled())

			// BaseURL should be auto-generated
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)

			return nil
		},
	}

	// Run the command with default flags
	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			// Verify custom values
			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "https://example.com", cfg.Server.BaseURL)
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "./data/test.db", cfg.Database.DSN)
			assert.Equal(t, 2*time.Minute, cfg.RateLimit.ReviewWindow)
			assert.Equal(t, "flag", cfg.Reviews.SpamPolicy)

			return nil
		},
	}

	// Run with custom args
	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--base-url", "https://example.com",
		"--log-level", "debug",
		"--database-dsn", "./data/test.db",
		"--review-window", "2m",
		"--spam-policy", "flag",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
