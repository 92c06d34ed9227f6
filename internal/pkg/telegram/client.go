package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lapakdigital/lapakstore/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client covering the storefront's
// needs: sending HTML messages (with optional inline keyboards), answering
// callback queries and registering the webhook.
type Client struct {
	Token      string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		Token:      strings.TrimSpace(env.GetEnv("TELEGRAM_BOT_TOKEN", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("TELEGRAM_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.APIBaseURL, c.Token, method)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) error {
	if c.Token == "" {
		return fmt.Errorf("telegram is not configured: TELEGRAM_BOT_TOKEN required")
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram %s response decode failed: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram %s failed: %s", method, out.Description)
	}
	return nil
}

// Send delivers an HTML-formatted message to a chat. Satisfies
// fulfillment.Notifier.
func (c *Client) Send(ctx context.Context, chatID int64, html string) error {
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     html,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// SendWithKeyboard delivers an HTML message with an inline keyboard.
func (c *Client) SendWithKeyboard(ctx context.Context, chatID int64, html string, kb InlineKeyboardMarkup) error {
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     html,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"reply_markup":             kb,
	})
}

// AnswerCallback closes the loading state of an inline button press; text is
// shown as a toast when non-empty.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload)
}

// SetWebhook registers the public update endpoint with the Bot API.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	})
}

// RegisterWebhookFromEnv points the Bot API at this deployment's update
// endpoint (PUBLIC_DOMAIN + /telegram/webhook). Returns false when the bot
// token or public domain is not configured; the storefront then receives no
// updates but the dashboard stays usable.
func RegisterWebhookFromEnv(ctx context.Context) (bool, error) {
	c := NewClientFromEnv()
	domain := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if c.Token == "" || domain == "" {
		return false, nil
	}
	return true, c.SetWebhook(ctx, domain+"/telegram/webhook")
}
