package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
)

const (
	templateCommentPublished = "comment_published.html"
	templateCommentRejected  = "comment_rejected.html"
)

// UserLookup resolves a comment author to a mailbox.
type UserLookup interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// Sender delivers one rendered template.
type Sender interface {
	Send(ctx context.Context, to, subject, templateName string, data any) error
}

// CommentData feeds the comment resolution templates.
type CommentData struct {
	Username    string
	Text        string
	Reason      string
	Retryable   bool
	EventLink   string
	CurrentYear int
}

// CommentNotifier tells authors how a comment that left the request path was
// resolved. It satisfies events.Notifier.
type CommentNotifier struct {
	users   UserLookup
	sender  Sender
	baseURL string
}

var _ events.Notifier = (*CommentNotifier)(nil)

func NewCommentNotifier(lookup UserLookup, sender Sender, baseURL string) (*CommentNotifier, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if err := validateLinkURL(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &CommentNotifier{users: lookup, sender: sender, baseURL: baseURL}, nil
}

func (n *CommentNotifier) CommentResolved(ctx context.Context, c events.Comment) error {
	if !c.Status.Terminal() {
		return nil
	}
	author, err := n.users.Get(ctx, c.AuthorID)
	if err != nil {
		return fmt.Errorf("lookup comment author: %w", err)
	}

	data := CommentData{
		Username:    author.Username,
		Text:        c.Text,
		Reason:      reasonText(c.RejectionReason),
		Retryable:   c.RejectionReason == events.ReasonModerationUnavailable,
		EventLink:   n.baseURL + "/api/v1/events/" + c.EventID,
		CurrentYear: time.Now().Year(),
	}

	if c.Status == events.CommentPublished {
		return n.sender.Send(ctx, author.Email, "Your comment is live", templateCommentPublished, data)
	}
	return n.sender.Send(ctx, author.Email, "Your comment was not published", templateCommentRejected, data)
}

func reasonText(reason events.RejectionReason) string {
	switch reason {
	case events.ReasonUnsafeContent:
		return "it did not pass our content guidelines"
	case events.ReasonModerationUnavailable:
		return "it could not be reviewed in time"
	case events.ReasonEventDeleted:
		return "the event was removed"
	case events.ReasonModeratorRejected:
		return "a moderator declined it"
	default:
		return string(reason)
	}
}
