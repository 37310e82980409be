package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Telegram limits photo captions to 1024 characters.
const maxCaptionRunes = 1024

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken   string
	ChatID     string
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	Backoff    time.Duration // first retry delay, doubled per attempt

	log zerolog.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log zerolog.Logger) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  "https://api.telegram.org",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		MaxRetries: 3,
		Backoff:    time.Second,
		log:        log,
	}
}

func (t *TelegramNotifier) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, name)
}

// Send sends an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, "send message")
}

// SendPhoto uploads a PNG with an HTML caption.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, caption, filename string, png []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{"chat_id": t.ChatID}
	if utf8.RuneCountInString(caption) <= maxCaptionRunes {
		fields["caption"] = caption
		fields["parse_mode"] = "HTML"
	} else {
		// Cutting markup can leave a tag open, which Telegram rejects.
		fields["caption"] = truncateRunes(plainText(caption), maxCaptionRunes)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if filename == "" {
		filename = "chart.png"
	}
	fw, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := fw.Write(png); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req, "send photo")
}

func (t *TelegramNotifier) do(req *http.Request, what string) error {
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Notify delivers a, as a photo when it carries an image, retrying on failure.
func (t *TelegramNotifier) Notify(ctx context.Context, a Alert) error {
	return t.NotifyWithRetry(ctx, a, t.MaxRetries)
}

func (t *TelegramNotifier) deliver(ctx context.Context, a Alert) error {
	if len(a.Image) > 0 {
		return t.SendPhoto(ctx, a.Text, a.ImageName, a.Image)
	}
	return t.Send(ctx, a.Text)
}

// NotifyWithRetry delivers a with exponential backoff retry.
func (t *TelegramNotifier) NotifyWithRetry(ctx context.Context, a Alert, maxRetries int) error {
	backoff := t.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.deliver(ctx, a)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		wait := backoff << uint(i)
		t.log.Warn().Err(err).
			Str("title", a.Title).
			Int("attempt", i+1).
			Int("attempts", maxRetries+1).
			Dur("retry_in", wait).
			Msg("telegram send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// plainText strips HTML tags and entities from a Telegram HTML message.
func plainText(s string) string {
	return html.UnescapeString(htmlTag.ReplaceAllString(s, ""))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
