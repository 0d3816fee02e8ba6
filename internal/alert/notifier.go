package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var severityEmoji = map[string]string{
	SeverityInfo:     ":information_source:",
	SeverityWarning:  ":warning:",
	SeverityCritical: ":rotating_light:",
}

// Notifier publica alertas operacionais, como um dispatch que falhou após o upload.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Message struct {
	Title    string
	Text     string
	Severity string
}

// SlackText monta o texto no formato mrkdwn de incoming webhooks.
func (m Message) SlackText() string {
	emoji, ok := severityEmoji[m.Severity]
	if !ok {
		emoji = severityEmoji[SeverityInfo]
	}
	var b strings.Builder
	b.WriteString(emoji)
	b.WriteByte(' ')
	if m.Title != "" {
		b.WriteString("*" + m.Title + "*\n")
	}
	b.WriteString(m.Text)
	return b.String()
}

// SlackNotifier posta em um incoming webhook do Slack.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

type slackPayload struct {
	Text string `json:"text"`
}

// NewSlackNotifier devolve nil quando SLACK_WEBHOOK_URL não está definido.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if s == nil {
		return errors.New("alert: slack não configurado")
	}

	body, err := json.Marshal(slackPayload{Text: msg.SlackText()})
	if err != nil {
		return fmt.Errorf("alert: payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: slack: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("alert: slack respondeu %d", resp.StatusCode)
	}
	return nil
}
