package email

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"

	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service renders and delivers transactional email through Resend.
// A disabled service logs the message instead of sending it.
type Service struct {
	config       config.EmailConfig
	templates    *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("EMAIL_FROM: %w", err)
		}
		if cfg.Provider != "resend" {
			return nil, fmt.Errorf("unsupported email provider %q", cfg.Provider)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// Send renders the named template with data and delivers it to a single recipient.
func (s *Service) Send(ctx context.Context, to, subject, templateName string, data any) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	body, err := s.renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	if !s.config.Enabled {
		s.logger.Debug().
			Str("to", to).
			Str("subject", subject).
			Str("template", templateName).
			Msg("email disabled, message not sent")
		return nil
	}
	return s.deliver(ctx, message{to: to, subject: subject, html: body, template: templateName})
}

var (
	ErrBadAddress = errors.New("email: bad address")
	ErrBadLink    = errors.New("email: link must be an absolute http(s) URL")
)

// validateEmailAddress accepts a single RFC 5322 address, optionally with a
// display name.
func validateEmailAddress(raw string) error {
	addr, err := mail.ParseAddress(raw)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %q: %v", ErrBadAddress, raw, err)
	case strings.ContainsAny(addr.Address, "\r\n"):
		return fmt.Errorf("%w: %q contains a line break", ErrBadAddress, raw)
	}
	return nil
}

// validateLinkURL guards values that end up in an href.
func validateLinkURL(link string) error {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadLink, link)
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var sb strings.Builder
	if err := s.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}
