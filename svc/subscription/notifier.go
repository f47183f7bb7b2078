package subscription

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/coachlatam/coachlatam/pkg/email"
	"github.com/coachlatam/coachlatam/pkg/logger"
)

// Notifier alerts operators about sagas that ended in SagaCritical.
type Notifier interface {
	NotifyCritical(ctx context.Context, saga *Saga) error
}

const criticalAlertBody = `Billing saga {{.ID}} needs manual reconciliation.

Kind:                     {{.Kind}}
Provider:                 {{.Provider}}
User:                     {{.UserID}}
External subscription:    {{.ExternalSubscriptionID}}
Compensation:             {{.Compensation}}
Last error:               {{.LastError}}
Started:                  {{.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}}

Resolve it with: coachlatam sagas resolve {{.ID}} --note "..."
`

var (
	criticalAlertText = texttemplate.Must(texttemplate.New("critical").Parse(criticalAlertBody))
	criticalAlertHTML = template.Must(template.New("critical").Parse(`<pre>` + criticalAlertBody + `</pre>`))
)

// EmailNotifier sends critical saga alerts through an email.EmailSender.
type EmailNotifier struct {
	sender email.EmailSender
	to     string
}

// NewEmailNotifier alerts the operator address to.
func NewEmailNotifier(sender email.EmailSender, to string) *EmailNotifier {
	return &EmailNotifier{sender: sender, to: to}
}

func (n *EmailNotifier) NotifyCritical(ctx context.Context, saga *Saga) error {
	var html, text bytes.Buffer
	if err := criticalAlertHTML.Execute(&html, saga); err != nil {
		return fmt.Errorf("render alert: %w", err)
	}
	if err := criticalAlertText.Execute(&text, saga); err != nil {
		return fmt.Errorf("render alert: %w", err)
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   n.to,
		Subject:  fmt.Sprintf("[CRITICAL] billing %s for %s needs reconciliation", saga.Kind, saga.ExternalSubscriptionID),
		BodyHTML: html.String(),
		BodyText: text.String(),
		Tag:      "billing-critical",
	})
}

// LogNotifier only logs critical sagas. It is used when no alert address
// is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a notifier that only logs.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyCritical(ctx context.Context, saga *Saga) error {
	n.log.ErrorContext(ctx, "billing saga requires manual reconciliation",
		logger.SagaID(saga.ID),
		logger.UserID(saga.UserID),
		logger.ExternalSubscriptionID(saga.ExternalSubscriptionID),
		logger.Provider(saga.Provider),
		slog.String("kind", string(saga.Kind)),
		slog.String("last_error", saga.LastError),
	)
	return nil
}
