// Package mailer delivers event passes by email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/pass"
	"gopkg.in/gomail.v2"
)

// PassMail is everything a pass email carries. It has no payment fields.
type PassMail struct {
	To       string
	Subject  string
	PNG      []byte
	Event    *models.Event
	ImageURL string
}

type Notifier interface {
	SendPass(ctx context.Context, mail PassMail) error
}

func Subject(event *models.Event) string {
	return fmt.Sprintf("Your Event Pass for %s", event.Name)
}

var passTemplate = template.Must(template.New("pass").Parse(`<h2>Your Event Pass for {{.Name}}</h2>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Location:</strong> {{.Location}}</p>
<p>Your QR code is attached to this email. Please show it at the event.</p>
{{if .ImageURL}}<p>You can also open your pass here: <a href="{{.ImageURL}}">{{.ImageURL}}</a></p>{{end}}`))

func renderBody(mail PassMail) (string, error) {
	data := struct {
		Name     string
		Date     string
		Location string
		ImageURL string
	}{
		Name:     mail.Event.Name,
		Date:     mail.Event.Date.Format("02 Jan 2006"),
		Location: mail.Event.Location,
		ImageURL: mail.ImageURL,
	}
	var buf bytes.Buffer
	if err := passTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render pass email: %w", err)
	}
	return buf.String(), nil
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendPass(ctx context.Context, mail PassMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.buildMessage(mail)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send pass to %s: %w", mail.To, err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(mail PassMail) (*gomail.Message, error) {
	if mail.To == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if mail.Event == nil {
		return nil, fmt.Errorf("event is required")
	}
	body, err := renderBody(mail)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/html", body)

	png := mail.PNG
	msg.Attach(pass.ImageFilename,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
	)
	return msg, nil
}

// LogMailer stands in for SMTP in development; it only logs the send.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPass(ctx context.Context, mail PassMail) error {
	m.logger.Info("pass email (not sent, SMTP not configured)",
		"to", mail.To,
		"subject", mail.Subject,
		"image_bytes", len(mail.PNG),
	)
	return nil
}
