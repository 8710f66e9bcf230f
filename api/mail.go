package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed templates
var templateFS embed.FS

// otpSender delivers one-time codes. The SMTP mailer implements it; tests
// substitute a recorder.
type otpSender interface {
	sendOTP(to, name, code, purpose string) error
}

type mailer struct {
	dialer    *mail.Dialer
	sender    string
	templates map[string]*template.Template
}

func newMailer(host string, port int, username string, password string, sender string) (*mailer, error) {
	m := &mailer{
		dialer:    mail.NewDialer(host, port, username, password),
		sender:    sender,
		templates: make(map[string]*template.Template),
	}
	m.dialer.Timeout = 10 * time.Second
	for purpose, file := range map[string]string{
		otpPurposeVerify: "templates/verify_email.tmpl",
		otpPurposeReset:  "templates/reset_password.tmpl",
	} {
		tmpl, err := template.New("email").ParseFS(templateFS, file)
		if err != nil {
			return nil, err
		}
		m.templates[purpose] = tmpl
	}
	return m, nil
}

func (m *mailer) sendOTP(to, name, code, purpose string) error {
	tmpl, ok := m.templates[purpose]
	if !ok {
		return fmt.Errorf("no email template for %q", purpose)
	}
	data := map[string]any{
		"Name":    name,
		"Code":    code,
		"Minutes": int(otpTTL / time.Minute),
	}
	return m.send(to, tmpl, data)
}

func (m *mailer) send(to string, tmpl *template.Template, data any) error {
	var subject bytes.Buffer
	err := tmpl.ExecuteTemplate(&subject, "subject", data)
	if err != nil {
		return err
	}
	var plainBody bytes.Buffer
	err = tmpl.ExecuteTemplate(&plainBody, "plainBody", data)
	if err != nil {
		return err
	}
	var htmlBody bytes.Buffer
	err = tmpl.ExecuteTemplate(&htmlBody, "htmlBody", data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/plain", plainBody.String())
	msg.AddAlternative("text/html", htmlBody.String())

	for i := 1; i <= 3; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		if i == 3 {
			break
		}
		time.Sleep(time.Duration(i) * 500 * time.Millisecond)
	}
	return err
}

// logMailer prints codes instead of sending them. Used when no SMTP host is
// configured.
type logMailer struct {
	logf func(format string, v ...any)
}

func (l logMailer) sendOTP(to, name, code, purpose string) error {
	l.logf("%s code for %s: %s", purpose, to, code)
	return nil
}
