// notifier.go: event bus consumer mailing admin notices for notable events.
package mail

import (
	"context"
	"fmt"
	"sort"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/events"
)

// AdminNotifier consumes catalog events and mails a short notice to the
// configured admin address. It implements events.Consumer.
type AdminNotifier struct {
	mailer     *Mailer
	adminEmail string
}

// NewAdminNotifier returns a notifier, or nil when no admin address is
// configured so callers can skip registration.
func NewAdminNotifier(settings *conf.Settings, mailer *Mailer) *AdminNotifier {
	if settings.Mail.AdminEmail == "" {
		return nil
	}
	return &AdminNotifier{
		mailer:     mailer,
		adminEmail: settings.Mail.AdminEmail,
	}
}

// Name implements events.Consumer.
func (n *AdminNotifier) Name() string {
	return "mail-admin-notifier"
}

// ProcessEvent implements events.Consumer. Only events an admin should
// hear about become email; everything else passes through silently.
func (n *AdminNotifier) ProcessEvent(event events.Event) error {
	var subject, headline string
	switch event.Type {
	case events.TypeUserRegistered:
		subject = "New user registered"
		headline = fmt.Sprintf("User #%d registered and awaits activation.", event.EntityID)
	case events.TypeRecordingFailed:
		subject = "Recording processing failed"
		headline = fmt.Sprintf("Recording #%d failed during processing.", event.EntityID)
	case events.TypeDatasetCreated:
		subject = "Dataset created"
		headline = fmt.Sprintf("Dataset #%d was created.", event.EntityID)
	default:
		return nil
	}

	lines := []string{headline}
	lines = append(lines, payloadLines(event.Payload)...)

	return n.mailer.SendNotice(context.Background(), n.adminEmail, subject, lines)
}

// payloadLines flattens the event payload into stable, readable lines.
func payloadLines(payload map[string]any) []string {
	if len(payload) == 0 {
		return nil
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, payload[k]))
	}
	return lines
}
