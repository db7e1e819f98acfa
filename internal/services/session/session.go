// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues stateless, signed admin session cookies.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/procclean/reviewgate/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the payload carried by the session cookie.
type Data struct {
	ExpiresAt time.Time
	Email     string
	AdminID   int64
}

// Manager encodes and decodes admin sessions.
type Manager struct {
	codec  *securecookie.SecureCookie
	now    func() time.Time
	name   string
	maxAge int
	secure bool
}

// NewManager creates a Manager from cfg. An empty hash key generates a
// random one, which invalidates all sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("no session hash key configured, generating an ephemeral one")
		hashKey = make([]byte, keyLength)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("generating session hash key: %w", err)
		}
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)

	return &Manager{
		codec:  codec,
		now:    time.Now,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(s, what string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", what, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", what, keyLength, len(key))
	}
	return key, nil
}

// Create returns a signed cookie for the given admin.
func (m *Manager) Create(adminID int64, email string) (*http.Cookie, error) {
	data := Data{
		AdminID:   adminID,
		Email:     email,
		ExpiresAt: m.now().Add(time.Duration(m.maxAge) * time.Second),
	}
	encoded, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return m.cookie(encoded, m.maxAge), nil
}

// Parse returns the session carried by req, or nil when there is none or
// it is invalid or expired. Errors are reserved for unexpected failures.
func (m *Manager) Parse(req *http.Request) (*Data, error) {
	c, err := req.Cookie(m.name)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session cookie: %w", err)
	}

	var data Data
	if err := m.codec.Decode(m.name, c.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // a bad cookie is just no session
	}
	if !m.now().Before(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
