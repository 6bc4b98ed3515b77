// Package telegram adapts the Telegram Bot API to the chat operations used by
// the batch service and the update dispatcher.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/veranemoloko/hls-relay-bot/internal/domain"
)

const (
	// FileEndpoint is the download URL template for files stored by Telegram.
	FileEndpoint = "https://api.telegram.org/file/bot%s/%s"

	pollTimeoutSeconds = 30
)

// Options configures the Bot API endpoints and the HTTP client.
type Options struct {
	APIEndpoint   string
	FileEndpoint  string
	UploadTimeout time.Duration
}

// Client sends messages and videos through the Bot API. The underlying library
// has no context support, so ctx is only honoured where the client does its
// own HTTP requests.
type Client struct {
	api          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	logger       *slog.Logger
}

// NewClient authenticates with token and returns a ready Client.
func NewClient(token string, opts Options, logger *slog.Logger) (*Client, error) {
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = tgbotapi.APIEndpoint
	}
	if opts.FileEndpoint == "" {
		opts.FileEndpoint = FileEndpoint
	}

	httpClient := &http.Client{Timeout: opts.UploadTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, opts.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	_ = tgbotapi.SetLogger(botLogger{logger: logger})

	logger.Info("authorized on bot account", "username", api.Self.UserName)

	return &Client{
		api:          api,
		httpClient:   httpClient,
		fileEndpoint: opts.FileEndpoint,
		logger:       logger,
	}, nil
}

// Username returns the bot account name.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendMessage posts text to chatID.
func (c *Client) SendMessage(_ context.Context, chatID int64, text string) (domain.MessageRef, error) {
	msg, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return domain.MessageRef{ChatID: chatID, MessageID: msg.MessageID}, nil
}

// EditMessage replaces the text of ref. Edits that would not change the text
// are not errors.
func (c *Client) EditMessage(_ context.Context, ref domain.MessageRef, text string) error {
	_, err := c.api.Request(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text))
	if err != nil && !isNotModified(err) {
		return fmt.Errorf("edit message %d: %w", ref.MessageID, err)
	}
	return nil
}

// SendVideo uploads the file at path as a streamable video.
func (c *Client) SendVideo(_ context.Context, chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true

	start := time.Now()
	if _, err := c.api.Send(video); err != nil {
		return fmt.Errorf("send video to %d: %w", chatID, err)
	}
	c.logger.Debug("video uploaded", "chat_id", chatID, "path", path, "duration", time.Since(start))
	return nil
}

// Document returns a source that downloads the uploaded file fileID.
func (c *Client) Document(fileID string) domain.ManifestSource {
	return &DocumentSource{client: c, fileID: fileID}
}

// SetWebhook registers url as the update destination.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Poll delivers updates to handle until ctx is done.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, tgbotapi.Update)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := c.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handle(ctx, update)
		}
	}
}

// DocumentSource streams a Telegram document into a writer.
type DocumentSource struct {
	client *Client
	fileID string
}

// Fetch resolves the file path and copies the file body into w.
func (s *DocumentSource) Fetch(ctx context.Context, w io.Writer) error {
	file, err := s.client.api.GetFile(tgbotapi.FileConfig{FileID: s.fileID})
	if err != nil {
		return fmt.Errorf("get file %s: %w", s.fileID, err)
	}
	url := fmt.Sprintf(s.client.fileEndpoint, s.client.api.Token, file.FilePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download file %s: %w", s.fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file %s: unexpected status %s", s.fileID, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download file %s: %w", s.fileID, err)
	}
	return nil
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

// botLogger routes the library's own log lines into slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "tgbotapi")
}
