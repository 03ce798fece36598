package emailloop

import (
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/idbroker/broker/internal/config"
)

var bodyTemplate = template.Must(template.New("confirm-email").Parse(
	"Click the link below to confirm your email address:\n\n" +
		"{{.BaseURL}}/confirm?session={{.SessionID}}&code={{.Code}}\n\n" +
		"If you did not request this, you can ignore this message.\n",
))

type bodyData struct {
	BaseURL   string
	SessionID string
	Code      string
}

// Mailer sends the one-time-code confirmation email over SMTP. Best
// effort, no retries: the spec's contract is "sent at-most-once per
// request".
type Mailer struct {
	sender config.Sender
	smtp   config.SMTP
}

// NewMailer builds a Mailer from the broker's sender and SMTP config.
func NewMailer(sender config.Sender, smtpCfg config.SMTP) *Mailer {
	return &Mailer{sender: sender, smtp: smtpCfg}
}

// Send composes and delivers the confirmation email to address.
func (m *Mailer) Send(address, baseURL, sessionID, code string) error {
	var body strings.Builder
	if err := bodyTemplate.Execute(&body, bodyData{BaseURL: baseURL, SessionID: sessionID, Code: code}); err != nil {
		return fmt.Errorf("render confirmation email body: %w", err)
	}

	from := m.sender.Address
	if m.sender.Name != "" {
		from = fmt.Sprintf("%s <%s>", m.sender.Name, m.sender.Address)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Confirm your address\r\n\r\n%s",
		from, address, body.String())

	addr := m.smtp.Host + ":" + m.smtp.Port
	var auth smtp.Auth
	if m.smtp.Username != "" {
		auth = smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, m.sender.Address, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}
