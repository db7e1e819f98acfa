// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends review notifications to the site owner.
package email

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/procclean/reviewgate/internal/config"
	"codeberg.org/procclean/reviewgate/internal/i18n"
	"codeberg.org/procclean/reviewgate/internal/models"
	"github.com/wneessen/go-mail"
)

// Service sends notification e-mails over SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	if cfg.NotifyEmail == "" {
		return nil, fmt.Errorf("notification address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// NotifyReview tells the owner about a new review. Flagged reviews get a
// moderation subject.
func (s *Service) NotifyReview(ctx context.Context, rv *models.Review) error {
	subject, body := s.Compose(ctx, rv)
	return s.send(ctx, s.cfg.NotifyEmail, subject, body)
}

// Compose renders the subject and body for rv in the context's locale.
func (s *Service) Compose(ctx context.Context, rv *models.Review) (string, string) {
	stars := i18n.TPlural(ctx, "rating_stars", rv.Rating)
	data := map[string]any{
		"Name":    rv.Name,
		"Stars":   stars,
		"Project": rv.Project,
		"Code":    rv.Code,
		"Comment": rv.Comment,
	}

	subjectID := "review_notification_subject"
	if rv.Flagged {
		subjectID = "review_flagged_subject"
	}

	body := i18n.TData(ctx, "review_notification_body", data)
	body = strings.TrimSpace(body) + "\n\n" + s.baseURL + "/admin/reviews\n"
	return i18n.TData(ctx, subjectID, data), body
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
