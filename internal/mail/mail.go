// Package mail delivers transactional email for account flows and admin
// notices through a shoutrrr SMTP service URL.
package mail

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/k3a/html2text"

	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/datastore"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/logging"
	"github.com/mousetube/mousetube-go/internal/observability"
	"github.com/mousetube/mousetube-go/internal/observability/metrics"
)

const sendTimeout = 30 * time.Second

var logger *slog.Logger

func init() {
	logger = logging.ForService("mail")
	if logger == nil {
		logger = slog.Default().With("service", "mail")
	}
}

// sendFunc abstracts shoutrrr delivery so tests can capture messages.
type sendFunc func(serviceURL, body, title string, timeout time.Duration) error

// shoutrrrSend builds a sender for the per-recipient service URL and
// delivers one message through it.
func shoutrrrSend(serviceURL, body, title string, timeout time.Duration) error {
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return err
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, e := range sender.Send(body, &params) {
		if e != nil {
			return e
		}
	}
	return nil
}

// Mailer renders embedded templates and sends them over the configured
// SMTP service URL. Recipient addresses never appear in logs.
type Mailer struct {
	settings *conf.MailSettings
	node     string
	ds       datastore.Interface
	metrics  *metrics.MailMetrics
	send     sendFunc
	useHTML  bool
	timeout  time.Duration
}

// NewMailer validates the mail settings and returns a Mailer. A disabled
// mailer is still usable; deliveries become debug-logged no-ops.
func NewMailer(settings *conf.Settings, ds datastore.Interface, obs *observability.Metrics) (*Mailer, error) {
	m := &Mailer{
		settings: &settings.Mail,
		node:     settings.Main.Name,
		ds:       ds,
		send:     shoutrrrSend,
		timeout:  sendTimeout,
	}
	if obs != nil {
		m.metrics = obs.Mail
	}

	if !settings.Mail.Enabled {
		return m, nil
	}

	if settings.Mail.SMTPURL == "" {
		return nil, errors.Newf("mail enabled but no SMTP URL configured").
			Component("mail").
			Category(errors.CategoryConfiguration).
			Build()
	}
	u, err := url.Parse(settings.Mail.SMTPURL)
	if err != nil || u.Scheme != "smtp" {
		return nil, errors.Newf("mail SMTP URL must be a shoutrrr smtp:// URL").
			Component("mail").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Mail.FrontendBaseURL == "" {
		return nil, errors.Newf("mail enabled but no front-end base URL configured").
			Component("mail").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// The smtp service sends a single body. When the operator's URL opts
	// into HTML the rendered template goes out as-is, otherwise its
	// html2text rendering does.
	m.useHTML = parseBoolParam(u.Query(), "usehtml")

	return m, nil
}

func parseBoolParam(q url.Values, key string) bool {
	for k, vals := range q {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			switch strings.ToLower(vals[0]) {
			case "yes", "true", "1":
				return true
			}
		}
	}
	return false
}

// SendActivation issues an activation token for the user and emails the
// activation link.
func (m *Mailer) SendActivation(ctx context.Context, user *datastore.User) error {
	raw, hash, err := NewToken()
	if err != nil {
		return err
	}
	if err := m.ds.CreateUserToken(&datastore.UserToken{
		UserID:    user.ID,
		Purpose:   datastore.TokenPurposeActivation,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(tokenTTL),
	}); err != nil {
		return err
	}

	link := m.accountLink("activate", raw)
	data := accountData{
		SiteName:  m.siteName(),
		Username:  user.Username,
		Link:      link,
		ExpiresIn: "3 days",
	}
	html, err := render(TemplateActivation, data)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordRenderError(TemplateActivation)
		}
		return err
	}

	m.debugLink(TemplateActivation, user.ID, link)
	subject := "Account activation on " + m.siteName()
	return m.deliver(ctx, TemplateActivation, user.Email, subject, html)
}

// SendPasswordReset issues a reset token for the user and emails the
// password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *datastore.User) error {
	raw, hash, err := NewToken()
	if err != nil {
		return err
	}
	if err := m.ds.CreateUserToken(&datastore.UserToken{
		UserID:    user.ID,
		Purpose:   datastore.TokenPurposePasswordReset,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(tokenTTL),
	}); err != nil {
		return err
	}

	link := m.accountLink("password/reset/confirm", raw)
	data := accountData{
		SiteName:  m.siteName(),
		Username:  user.Username,
		Link:      link,
		ExpiresIn: "3 days",
	}
	html, err := render(TemplatePasswordReset, data)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordRenderError(TemplatePasswordReset)
		}
		return err
	}

	m.debugLink(TemplatePasswordReset, user.ID, link)
	subject := "Password reset on " + m.siteName()
	return m.deliver(ctx, TemplatePasswordReset, user.Email, subject, html)
}

// SendNotice renders the admin notice template and delivers it to the
// given recipient.
func (m *Mailer) SendNotice(ctx context.Context, recipient, subject string, lines []string) error {
	data := noticeData{
		SiteName: m.siteName(),
		Node:     m.node,
		Subject:  subject,
		Lines:    lines,
	}
	html, err := render(TemplateAdminNotice, data)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordRenderError(TemplateAdminNotice)
		}
		return err
	}
	return m.deliver(ctx, TemplateAdminNotice, recipient, subject, html)
}

// Enabled reports whether deliveries actually go out.
func (m *Mailer) Enabled() bool {
	return m.settings.Enabled
}

func (m *Mailer) siteName() string {
	if m.settings.SiteName != "" {
		return m.settings.SiteName
	}
	return "mouseTube"
}

func (m *Mailer) accountLink(path, token string) string {
	base := strings.TrimRight(m.settings.FrontendBaseURL, "/")
	return base + "/" + path + "/" + token
}

// debugLink logs the raw account link. Tokens in logs are only acceptable
// on explicit opt-in, for development setups without a mail server.
func (m *Mailer) debugLink(template string, userID uint, link string) {
	if m.settings.Debug {
		logger.Info("account link", "template", template, "user_id", userID, "link", link)
	}
}

// deliver sends one rendered message. The context is accepted for API
// symmetry; the shoutrrr router enforces its own timeout.
func (m *Mailer) deliver(ctx context.Context, template, recipient, subject, htmlBody string) error {
	_ = ctx

	if !m.settings.Enabled {
		logger.Debug("mail disabled, skipping delivery", "template", template)
		return nil
	}
	if recipient == "" {
		return errors.Newf("no recipient address").
			Component("mail").
			Category(errors.CategoryMail).
			Context("template", template).
			Build()
	}

	body := htmlBody
	if !m.useHTML {
		body = html2text.HTML2Text(htmlBody)
	}

	serviceURL, err := m.serviceURL(recipient)
	if err != nil {
		return err
	}

	start := time.Now()
	err = m.send(serviceURL, body, subject, m.timeout)
	duration := time.Since(start).Seconds()

	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordDelivery(template, "error", duration)
			m.metrics.RecordDeliveryError(template, deliveryErrorCategory(err))
		}
		return errors.New(err).
			Component("mail").
			Category(errors.CategoryMail).
			Context("template", template).
			Build()
	}

	if m.metrics != nil {
		m.metrics.RecordDelivery(template, "success", duration)
	}
	logger.Debug("mail delivered", "template", template, "duration_ms", int(duration*1000))
	return nil
}

// serviceURL rewrites the configured SMTP URL for one recipient.
func (m *Mailer) serviceURL(recipient string) (string, error) {
	u, err := url.Parse(m.settings.SMTPURL)
	if err != nil {
		return "", errors.New(err).
			Component("mail").
			Category(errors.CategoryConfiguration).
			Build()
	}
	q := u.Query()
	q.Set("to", recipient)
	if m.settings.From != "" && q.Get("from") == "" {
		q.Set("from", m.settings.From)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func deliveryErrorCategory(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "scheme"):
		return "configuration"
	default:
		return "network"
	}
}
