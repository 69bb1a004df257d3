package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Email is a rendered message ready for a transport.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends rendered email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// MailerConfig selects and configures a transport.
type MailerConfig struct {
	Provider     string // log, smtp or resend
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	ResendAPIKey string
}

// NewMailer returns the transport named by cfg.Provider.
func NewMailer(cfg MailerConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return &LogMailer{logger: logger.With("component", "notify.mailer")}, nil
	case "smtp":
		return &SMTPMailer{
			host: cfg.SMTPHost,
			port: cfg.SMTPPort,
			user: cfg.SMTPUser,
			pass: cfg.SMTPPass,
			from: cfg.From,
			send: smtp.SendMail,
		}, nil
	case "resend":
		return &ResendMailer{
			apiKey:   cfg.ResendAPIKey,
			from:     cfg.From,
			endpoint: resendEndpoint,
			client:   newResendClient(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, email Email) error {
	m.logger.InfoContext(ctx, "email_logged",
		"to", email.To,
		"subject", email.Subject,
		"html_bytes", len(email.HTML),
	)
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
	send sendMailFunc
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	envelopeFrom := m.from
	if addr, err := mail.ParseAddress(m.from); err == nil {
		envelopeFrom = addr.Address
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	addr := m.host + ":" + strconv.Itoa(m.port)
	if err := m.send(addr, auth, envelopeFrom, []string{email.To}, buildMIMEMessage(m.from, email)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMIMEMessage renders the headers and HTML body of a single-part message.
func buildMIMEMessage(from string, email Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + mimeHeader(email.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.HTML)
	return []byte(b.String())
}

// mimeHeader strips line breaks so a subject cannot inject headers.
func mimeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendMailer sends through the Resend HTTPS API.
type ResendMailer struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

// Send implements Mailer.
func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("User-Agent", "PMT-Mailer/1.0")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: resend status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// newResendClient bounds every stage of the API call so a stalled provider
// cannot pin a worker slot. Redirects are not followed.
func newResendClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
