// Package notify delivers per-user alerts about order lifecycle events.
// Delivery is best-effort: callers log failures and move on, a broken bot
// token must never stall the monitoring loop.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// TelegramNotifier delivers messages via the Telegram Bot API. User IDs in
// this system are Telegram chat IDs, so no lookup table is needed.
type TelegramNotifier struct {
	token  string
	client *http.Client
}

// NewTelegramNotifier creates a TelegramNotifier for the given bot token.
func NewTelegramNotifier(token string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a message to the user's chat using the sendMessage API.
func (t *TelegramNotifier) Send(ctx context.Context, userID int64, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id":    strconv.FormatInt(userID, 10),
		"text":       message,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

var _ domain.NotificationSender = (*TelegramNotifier)(nil)

// NoopNotifier discards every message. Used when no bot token is configured.
type NoopNotifier struct{}

// Send does nothing.
func (NoopNotifier) Send(context.Context, int64, string) error { return nil }

var _ domain.NotificationSender = NoopNotifier{}
