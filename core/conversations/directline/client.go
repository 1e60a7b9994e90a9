package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "https://directline.botframework.com/v3/directline"

	defaultPollInterval = 500 * time.Millisecond
	maxResponseSize     = 1 << 20
)

// Client opens conversations with a bot over the Direct Line REST API.
type Client struct {
	baseURL string
	secret  string
	userID  string
	client  *http.Client

	pollRetries  int
	pollInterval time.Duration
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.client = client }
}

// WithUserID sets the sender id used for user messages. A random id is
// generated when none is set.
func WithUserID(userID string) ClientOption {
	return func(c *Client) {
		if userID != "" {
			c.userID = userID
		}
	}
}

// WithPollRetries makes a conversation poll again, up to retries more times
// with exponential backoff starting at interval, while the bot has not
// replied. By default activities are polled exactly once per message.
func WithPollRetries(retries int, interval time.Duration) ClientOption {
	return func(c *Client) {
		c.pollRetries = max(retries, 0)
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func NewClient(secret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		secret:       secret,
		userID:       uuid.NewString(),
		client:       http.DefaultClient,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) UserID() string { return c.userID }

// StartConversation opens a new conversation.
func (c *Client) StartConversation(ctx context.Context) (conversations.Conversation, error) {
	ctx, span := tracer.Start(ctx, "start conversation")
	defer span.End()

	conversation, err := c.startConversation(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("conversation.id", conversation.id))
	logger.InfoContext(ctx, "conversation started", "conversation_id", conversation.id)
	return conversation, nil
}

func (c *Client) startConversation(ctx context.Context) (*Conversation, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/conversations", nil)
	if err != nil {
		return nil, &conversations.SessionError{Message: "error creating HTTP request", Cause: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &conversations.SessionError{Message: "error sending request", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &conversations.SessionError{StatusCode: resp.StatusCode, Message: "error reading response", Cause: err}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &conversations.SessionError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("non-OK HTTP status: %s %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var started startConversationResponse
	if err := json.Unmarshal(body, &started); err != nil {
		return nil, &conversations.SessionError{StatusCode: resp.StatusCode, Message: "malformed response", Cause: err}
	}
	if started.ConversationID == "" {
		return nil, &conversations.SessionError{StatusCode: resp.StatusCode, Message: "response has no conversationId"}
	}

	return &Conversation{
		client:    c,
		id:        started.ConversationID,
		watermark: startWatermark,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshalling payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }
