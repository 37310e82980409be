package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to a URL.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

type webhookPayload struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Timestamp   int64  `json:"ts"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(webhookPayload{
		Title:       a.Title,
		Text:        a.Text,
		ImageBase64: base64.StdEncoding.EncodeToString(a.Image),
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
