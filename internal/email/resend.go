package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ErrRateLimited is returned when Resend refuses a send because of its rate
// limit. Notifications are best effort, so callers log it and move on.
var ErrRateLimited = errors.New("email rate limited")

type message struct {
	to       string
	subject  string
	html     string
	template string
}

// deliver hands one rendered message to Resend. The template name becomes a
// tag so delivery stats can be split by notification kind.
func (s *Service) deliver(ctx context.Context, msg message) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend client not initialized")
	}

	req := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{msg.to},
		Subject: msg.subject,
		Html:    msg.html,
		Tags:    []resend.Tag{{Name: "notification", Value: tagValue(msg.template)}},
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, req)
	if err != nil {
		var limited *resend.RateLimitError
		if errors.As(err, &limited) {
			s.logger.Warn().
				Str("template", msg.template).
				Str("remaining", limited.Remaining).
				Str("reset", limited.Reset).
				Msg("resend rate limit exceeded, notification dropped")
			return fmt.Errorf("%w (resets in %s seconds): %v", ErrRateLimited, limited.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("template", msg.template).
		Msg("notification sent")
	return nil
}

// tagValue keeps the characters Resend accepts in tag values.
func tagValue(template string) string {
	name := strings.TrimSuffix(template, ".html")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
