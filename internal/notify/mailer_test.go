package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewMailer_Providers(t *testing.T) {
	for provider, want := range map[string]any{
		"":       &LogMailer{},
		"log":    &LogMailer{},
		"smtp":   &SMTPMailer{},
		"resend": &ResendMailer{},
	} {
		m, err := NewMailer(MailerConfig{Provider: provider}, discardLogger())
		require.NoError(t, err, provider)
		assert.IsType(t, want, m, provider)
	}

	_, err := NewMailer(MailerConfig{Provider: "pigeon"}, discardLogger())
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSMTPMailer_Send(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := &SMTPMailer{
		host: "mail.example.com",
		port: 2525,
		user: "bot",
		pass: "secret",
		from: "PMT <no-reply@pmt.test>",
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
			return nil
		},
	}

	err := m.Send(context.Background(), Email{To: "sam@example.com", Subject: "Hi\r\nBcc: evil@example.com", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "no-reply@pmt.test", gotFrom)
	assert.Equal(t, []string{"sam@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.Contains(t, gotMsg, "Subject: Hi  Bcc: evil@example.com\r\n")
	assert.False(t, strings.Contains(gotMsg, "\r\nBcc:"), "subject must not inject headers")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>x</p>"))
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := &SMTPMailer{host: "h", port: 25, from: "a@b.c", send: func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("relay denied")
	}}
	err := m.Send(context.Background(), Email{To: "x@y.z"})
	assert.ErrorContains(t, err, "relay denied")
}

func TestResendMailer_Send(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := &ResendMailer{apiKey: "re_test", from: "PMT <no-reply@pmt.test>", endpoint: srv.URL, client: srv.Client()}
	require.NoError(t, m.Send(context.Background(), Email{To: "sam@example.com", Subject: "S", HTML: "<p>b</p>"}))

	assert.Equal(t, []string{"sam@example.com"}, got.To)
	assert.Equal(t, "S", got.Subject)
	assert.Equal(t, "<p>b</p>", got.HTML)
}

func TestResendMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := &ResendMailer{apiKey: "k", endpoint: srv.URL, client: srv.Client()}
	err := m.Send(context.Background(), Email{To: "x@y.z"})
	assert.ErrorContains(t, err, "status 422")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestResendMailer_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := &ResendMailer{apiKey: "k", endpoint: srv.URL, client: srv.Client()}
	err := m.Send(context.Background(), Email{To: "x@y.z"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}
