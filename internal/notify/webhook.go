package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

// ErrRateLimited возвращается, если получатель продолжает отвечать 429 после всех попыток.
var ErrRateLimited = errors.New("webhook rate limited")

const maxWebhookAttempts = 3

// WebhookClient отправляет события о совпадениях на HTTP-адрес получателя.
type WebhookClient struct {
	url        string
	httpClient *http.Client
}

// NewWebhookClient создаёт клиент для отправки событий по указанному адресу.
func NewWebhookClient(url string) *WebhookClient {
	url = strings.TrimRight(url, "/")
	if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	return &WebhookClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Post отправляет событие и возвращает код ответа и паузу из заголовка Retry-After для ответа 429.
func (c *WebhookClient) Post(ctx context.Context, event MatchEvent) (int, time.Duration, error) {
	if c == nil || c.url == "" {
		return 0, 0, fmt.Errorf("webhook client not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp.StatusCode, 0, nil
}

// MatchCreated отправляет событие о совпадении, выдерживая паузу Retry-After между попытками.
func (c *WebhookClient) MatchCreated(ctx context.Context, m model.Match) error {
	event := NewMatchEvent(m)

	for attempt := 1; attempt <= maxWebhookAttempts; attempt++ {
		code, retryAfter, err := c.Post(ctx, event)
		if err != nil {
			return err
		}
		if code != http.StatusTooManyRequests {
			return nil
		}
		if attempt == maxWebhookAttempts {
			break
		}

		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w: match %s", ErrRateLimited, m.ID)
}

// Close ничего не делает.
func (c *WebhookClient) Close() error {
	return nil
}
