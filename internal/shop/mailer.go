package shop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Mail is one outbound notification.
type Mail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// Mailer delivers notifications. Failures are logged by callers and never
// abort the operation that triggered them.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Resend posts to the Resend transactional mail API.
type Resend struct {
	APIKey string
	From   string
	Client *http.Client
}

const resendEndpoint = "https://api.resend.com/emails"

func (r *Resend) Send(ctx context.Context, m Mail) error {
	payload, err := json.Marshal(struct {
		From string `json:"from"`
		Mail
	}{From: r.From, Mail: m})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	Logger *slog.Logger
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.Logger.Info("mail (not sent)", "to", m.To, "subject", m.Subject)
	return nil
}
