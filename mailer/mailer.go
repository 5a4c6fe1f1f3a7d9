// Package mailer delivers the engine's notification and digest emails over
// SMTP. Adapted from email/sender.go and email/smtp.go, trimmed to a single
// recipient: a digest-to-self send never needs CC/BCC dedup or attachment
// MIME parts, so that machinery is dropped here (see DESIGN.md).
package mailer

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Config is the SMTP connection config the engine's mailer sends through.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTP is an engine.Mailer implementation over net/smtp.
type SMTP struct {
	cfg Config
}

// New builds an SMTP mailer.
func New(cfg Config) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTP{cfg: cfg}
}

// Send delivers one HTML email to a single recipient, matching the
// engine.Mailer contract: send(to, subject, htmlBody, senderName).
func (s *SMTP) Send(to, subject, htmlBody, senderName string) error {
	client, err := connect(context.Background(), s.cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return deliver(client, s.cfg, to, subject, htmlBody, senderName)
}

// connect establishes a persistent, authenticated SMTP client with TLS and
// context support, adapted from email/smtp.go's ConnectSMTPWithContext.
func connect(ctx context.Context, cfg Config) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp client init: %w", err)
	}

	if cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

// deliver formats and sends one MIME message to a single recipient.
func deliver(client *smtp.Client, cfg Config, to, subject, htmlBody, senderName string) (err error) {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return fmt.Errorf("smtp from address is empty")
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command: %w", err)
	}
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush smtp writer: %w", ferr)
		}
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close smtp writer: %w", cerr)
		}
	}()

	if senderName == "" {
		senderName = "Inbox Triage"
	}
	headers := []struct{ k, v string }{
		{"From", fmt.Sprintf("%s <%s>", senderName, from)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
		{"X-Message-ID", strconv.FormatInt(time.Now().UnixNano(), 10)},
	}
	for _, h := range headers {
		if _, err = bw.WriteString(h.k + ": " + h.v + "\r\n"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err = bw.WriteString("\r\n"); err != nil {
		return err
	}
	if _, err = bw.WriteString(htmlBody); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}
