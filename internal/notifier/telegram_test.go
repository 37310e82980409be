package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(url string) *TelegramNotifier {
	t := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	t.BaseURL = url
	t.Backoff = time.Millisecond
	return t
}

func TestTelegram_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), Alert{Title: "t", Text: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegram_SendPhoto(t *testing.T) {
	png := []byte("\x89PNG fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendPhoto", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "caption", r.FormValue("caption"))

		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "BTCUSDT_1h.png", hdr.Filename)
		assert.Equal(t, png, data)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).Notify(context.Background(), Alert{Text: "caption", Image: png, ImageName: "BTCUSDT_1h.png"})
	require.NoError(t, err)
}

func TestTelegram_SendPhotoLongCaptionDropsHTML(t *testing.T) {
	caption := "<b>Wedge Breakout detected!</b>\n" + strings.Repeat("x &amp; y ", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got := r.FormValue("caption")
		assert.Empty(t, r.FormValue("parse_mode"))
		assert.Equal(t, maxCaptionRunes, utf8.RuneCountInString(got))
		assert.True(t, strings.HasPrefix(got, "Wedge Breakout detected!\nx & y"), "caption = %q", got)
		assert.NotContains(t, got, "<b>")
		assert.True(t, strings.HasSuffix(got, "…"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).SendPhoto(context.Background(), caption, "a.png", []byte("png"))
	require.NoError(t, err)
}

func TestTelegram_SendPhotoShortCaptionKeepsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "<b>hi</b>", r.FormValue("caption"))
		assert.Equal(t, "HTML", r.FormValue("parse_mode"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestTelegram(srv.URL).SendPhoto(context.Background(), "<b>hi</b>", "a.png", []byte("png")))
}

func TestTelegram_RetryThenSucceed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := newTestTelegram(srv.URL)
	require.NoError(t, tg.NotifyWithRetry(context.Background(), Alert{Text: "x"}, 3))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTelegram_RetryExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).NotifyWithRetry(context.Background(), Alert{Text: "x"}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retries exhausted")
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTelegram_RetryHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := newTestTelegram(srv.URL)
	tg.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tg.NotifyWithRetry(ctx, Alert{Text: "x"}, 5)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
}

type memOffsets struct {
	mu     sync.Mutex
	offset int
}

func (m *memOffsets) PollingOffset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

func (m *memOffsets) SetPollingOffset(o int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = o
	return nil
}

func TestTelegram_Polling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		offsets  []string
		replies  []string
		getCalls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			getCalls++
			offsets = append(offsets, r.URL.Query().Get("offset"))
			if getCalls == 1 {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":9,"message":{"text":"/scan","chat":{"id":7}}},
					{"update_id":10,"message":{"text":" /status ","chat":{"id":42}}}]}`))
				return
			}
			cancel()
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			replies = append(replies, body["text"])
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	store := &memOffsets{offset: 5}
	var handled []string
	handler := func(_ context.Context, cmd string) string {
		handled = append(handled, cmd)
		return "reply to " + cmd
	}

	done := make(chan struct{})
	go func() {
		newTestTelegram(srv.URL).StartPolling(ctx, handler, store)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/status"}, handled, "commands from other chats are ignored")
	assert.Equal(t, []string{"reply to /status"}, replies)
	assert.Equal(t, "5", offsets[0])
	assert.Equal(t, "11", offsets[1])
	assert.Equal(t, 11, store.PollingOffset())
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab…", truncateRunes("abcd", 3))
}
