package telegram

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

	"github.com/nkiryanov/smarthome/internal/logger"
	"github.com/nkiryanov/smarthome/internal/service/notify"
)

const (
	DefaultAPIURL = "https://api.telegram.org"

	defaultRetryAfter = 60 // seconds, if telegram didn't tell
)

var ErrNoAdminChat = errors.New("admin chat is not configured")

type Config struct {
	// Bot API address, default is used if empty
	APIURL string

	BotToken    string
	AdminChatID int64
}

// Telegram Bot API client. Sends messages with 'sendMessage' method
type Client struct {
	apiURL      string
	botToken    string
	adminChatID int64

	client *http.Client
	logger logger.Logger
}

func NewClient(cfg Config, logger logger.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token must not be empty")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	return &Client{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		botToken:    cfg.BotToken,
		adminChatID: cfg.AdminChatID,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
	}, nil
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters"`
}

func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	chatID := msg.ChatID
	if msg.Admin {
		if c.adminChatID == 0 {
			return ErrNoAdminChat
		}
		chatID = c.adminChatID
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: msg.Text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/bot"+c.botToken+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Error contains url with bot token, don't wrap it as is
		return fmt.Errorf("failed to send request: %w", errors.Unwrap(err))
	}
	defer resp.Body.Close() // nolint:errcheck

	var apiResp apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiResp)

	switch resp.StatusCode {
	case http.StatusOK:
		c.logger.Debug("Telegram message sent", "chat_id", chatID)
		return nil
	case http.StatusTooManyRequests:
		return c.processTooManyRequests(resp, apiResp)
	default:
		c.logger.Warn("Failed to send telegram message", "status_code", resp.StatusCode, "description", apiResp.Description)
		return fmt.Errorf("telegram responded %d: %s", resp.StatusCode, apiResp.Description)
	}
}

func (c *Client) processTooManyRequests(resp *http.Response, apiResp apiResponse) error {
	retryAfter := apiResp.Parameters.RetryAfter
	if retryAfter <= 0 {
		header := resp.Header.Get("Retry-After")
		n, err := strconv.Atoi(strings.TrimSpace(header))
		switch {
		case err == nil && n > 0:
			retryAfter = n
		default:
			retryAfter = defaultRetryAfter
		}
	}

	c.logger.Warn("Telegram throttled", "retry_after", retryAfter)
	return &notify.RetryAfterError{
		RetryAfter: time.Duration(retryAfter) * time.Second,
		Err:        fmt.Errorf("too many requests: %s", apiResp.Description),
	}
}
