package services

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

var loginMailTmpl = template.Must(template.New("login").Parse(`From: {{.From}}
To: {{.To}}
Subject: Sign in to Progress Widgets
Date: {{.Date}}
MIME-Version: 1.0
Content-Type: text/plain; charset="utf-8"

Click the link below to sign in. It can be used once and expires soon.

{{.Link}}

If you did not ask to sign in, ignore this email.
`))

// LogMailer writes sign-in links to the log instead of sending them. It is
// used when no SMTP server is configured.
type LogMailer struct{}

func (LogMailer) SendLoginLink(_ context.Context, email, link string) error {
	log.Infof("Mail: sign-in link for %s: %s", email, link)
	return nil
}

// SMTPMailer sends sign-in links through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendLoginLink(ctx context.Context, email, link string) error {
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid recipient %q", email)
	}
	msg, err := m.message(email, link)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.From, []string{email}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			log.Errorf("Mail: failed to send sign-in link to %s: %v", email, err)
			return err
		}
		log.Infof("Mail: sign-in link sent to %s", email)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) message(to, link string) ([]byte, error) {
	var buf bytes.Buffer
	err := loginMailTmpl.Execute(&buf, struct {
		From, To, Link, Date string
	}{From: m.From, To: to, Link: link, Date: time.Now().Format(time.RFC1123Z)})
	if err != nil {
		return nil, fmt.Errorf("render login mail: %w", err)
	}
	return bytes.ReplaceAll(buf.Bytes(), []byte("\n"), []byte("\r\n")), nil
}
