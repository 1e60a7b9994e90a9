package directline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errNoReply = errors.New("bot has not replied yet")

// Conversation is an open Direct Line conversation. It tracks the watermark
// of the last message sent so every poll only returns newer activities.
type Conversation struct {
	client    *Client
	id        string
	watermark string
}

func (c *Conversation) ID() string { return c.id }

// Watermark is the conversation's current read position.
func (c *Conversation) Watermark() string { return c.watermark }

// Converse sends text and returns the concatenated text of the bot's message
// activities that follow it.
func (c *Conversation) Converse(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "converse")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", c.id),
		attribute.Int("request.text_length", len(text)),
	)

	reply, err := c.converse(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.String("conversation.watermark", c.watermark),
		attribute.Int("response.text_length", len(reply)),
	)
	return reply, nil
}

func (c *Conversation) converse(ctx context.Context, text string) (string, error) {
	activityID, err := c.Send(ctx, text)
	if err != nil {
		return "", err
	}
	watermark := advanceWatermark(c.watermark, deriveWatermark(activityID))

	activities, err := c.awaitReply(ctx, watermark)
	if err != nil {
		return "", err
	}
	c.watermark = watermark
	return conversations.JoinMessages(activities), nil
}

// Send posts a user message and returns the id assigned to it.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	message := messageActivity{
		Type: conversations.ActivityTypeMessage,
		From: channelAccount{ID: c.client.userID},
		Text: text,
	}

	req, err := c.client.newRequest(ctx, http.MethodPost, c.activitiesURL(), message)
	if err != nil {
		return "", &conversations.TransportError{Op: "send", Message: "error creating HTTP request", Cause: err}
	}

	body, status, err := c.do(req)
	if err != nil {
		return "", &conversations.TransportError{Op: "send", StatusCode: status, Message: "request failed", Cause: err}
	}

	var resource resourceResponse
	if err := json.Unmarshal(body, &resource); err != nil {
		return "", &conversations.TransportError{Op: "send", StatusCode: status, Message: "malformed response", Cause: err}
	}
	if resource.ID == "" {
		return "", &conversations.TransportError{Op: "send", StatusCode: status, Message: "response has no activity id"}
	}
	return resource.ID, nil
}

// Activities returns every activity after watermark, in conversation order.
func (c *Conversation) Activities(ctx context.Context, watermark string) ([]conversations.Activity, error) {
	activitiesURL := c.activitiesURL()
	if watermark != startWatermark {
		activitiesURL += "?" + url.Values{"watermark": {watermark}}.Encode()
	}

	req, err := c.client.newRequest(ctx, http.MethodGet, activitiesURL, nil)
	if err != nil {
		return nil, &conversations.TransportError{Op: "poll", Message: "error creating HTTP request", Cause: err}
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, &conversations.TransportError{Op: "poll", StatusCode: status, Message: "request failed", Cause: err}
	}

	var set activitySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, &conversations.TransportError{Op: "poll", StatusCode: status, Message: "malformed response", Cause: err}
	}
	if set.Activities == nil {
		return nil, &conversations.TransportError{Op: "poll", StatusCode: status, Message: "response has no activities"}
	}

	var activities []conversations.Activity
	if err := copier.Copy(&activities, set.Activities); err != nil {
		return nil, &conversations.TransportError{Op: "poll", StatusCode: status, Message: "error converting activities", Cause: err}
	}
	return activities, nil
}

// awaitReply polls once, and keeps polling while the bot has not replied if
// poll retries are configured.
func (c *Conversation) awaitReply(ctx context.Context, watermark string) ([]conversations.Activity, error) {
	if c.client.pollRetries == 0 {
		return c.Activities(ctx, watermark)
	}

	var last []conversations.Activity
	poll := func() ([]conversations.Activity, error) {
		activities, err := c.Activities(ctx, watermark)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if !containsMessage(activities) {
			last = activities
			logger.DebugContext(ctx, "no reply yet, polling again", "conversation_id", c.id, "watermark", watermark)
			return nil, errNoReply
		}
		return activities, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.client.pollInterval
	activities, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.client.pollRetries+1)),
	)
	if errors.Is(err, errNoReply) {
		logger.WarnContext(ctx, "bot did not reply", "conversation_id", c.id, "watermark", watermark)
		return last, nil
	}
	return activities, err
}

func (c *Conversation) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading response: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, resp.StatusCode, fmt.Errorf("non-OK HTTP status: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, resp.StatusCode, nil
}

func (c *Conversation) activitiesURL() string {
	return c.client.baseURL + "/conversations/" + url.PathEscape(c.id) + "/activities"
}

func containsMessage(activities []conversations.Activity) bool {
	for _, activity := range activities {
		if activity.IsMessage() {
			return true
		}
	}
	return false
}
