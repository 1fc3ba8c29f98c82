package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// Notifier pushes supervision alerts to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// AnomalyDetected posts a short alert about a fresh anomaly.
func (n *Notifier) AnomalyDetected(ctx context.Context, a domain.Anomaly) error {
	msg := fmt.Sprintf("*%s anomaly* on part `%s`\nmachine %d, event %d\nscore %.2f, confidence %s",
		a.Severity, a.PartID, a.MachineID, a.EventID, a.AnomalyScore, a.Confidence)
	return n.send(ctx, msg)
}

// PartCompleted posts the terminal status of a production unit.
func (n *Notifier) PartCompleted(ctx context.Context, p domain.Part) error {
	msg := fmt.Sprintf("Part `%s` reached status *%s*", p.ExternalID, p.Status)
	return n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
