// Package telegram pushes ledger files and operational alerts through the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends as a single bot.
type Client struct {
	token    string
	endpoint string
	hc       *http.Client
}

// New creates a client. baseURL is normally https://api.telegram.org.
// No request is made until the first send.
func New(baseURL, token string) *Client {
	return &Client{
		token:    token,
		endpoint: strings.TrimRight(baseURL, "/") + "/bot%s/%s",
		hc:       &http.Client{Timeout: 60 * time.Second},
	}
}

// SendDocument uploads the file at path to chatID with a caption. The
// document is named after the base name of path.
func (c *Client) SendDocument(ctx context.Context, chatID, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(0, tgbotapi.FileReader{Name: filepath.Base(path), Reader: f})
	setChat(&doc.BaseChat, chatID)
	doc.Caption = caption

	return c.request(ctx, "sendDocument", doc)
}

// SendMessage posts a plain text message to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	msg := tgbotapi.NewMessage(0, text)
	setChat(&msg.BaseChat, chatID)

	return c.request(ctx, "sendMessage", msg)
}

func (c *Client) request(ctx context.Context, method string, msg tgbotapi.Chattable) error {
	bot := &tgbotapi.BotAPI{
		Token:  c.token,
		Client: contextClient{ctx: ctx, hc: c.hc},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(c.endpoint)

	if _, err := bot.Request(msg); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// setChat addresses numeric chat ids directly and anything else, such as
// "@channel", by username.
func setChat(chat *tgbotapi.BaseChat, chatID string) {
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		chat.ChatID = id
		return
	}
	chat.ChannelUsername = chatID
}

// contextClient binds a send to its caller's context and strips the request
// URL, which embeds the bot token, from transport errors.
type contextClient struct {
	ctx context.Context
	hc  *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.hc.Do(req.WithContext(c.ctx))
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, uerr.Err
		}
		return nil, err
	}
	return resp, nil
}
