package credentials

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// maxTokenSize bounds how much of the token response is read.
const maxTokenSize = 64 << 10

// TokenSource hands out bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Issuer exchanges a subscription key for a bearer token at a token-issuing
// endpoint. Every call performs a fresh exchange.
type Issuer struct {
	url             string
	subscriptionKey string
	client          *http.Client
}

func NewIssuer(url, subscriptionKey string, client *http.Client) *Issuer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Issuer{url: url, subscriptionKey: subscriptionKey, client: client}
}

// Key identifies the credential this issuer exchanges.
func (i *Issuer) Key() string { return i.url }

func (i *Issuer) Token(ctx context.Context) (string, error) { return i.AcquireToken(ctx) }

// AcquireToken posts an empty body with the subscription key and returns the
// response body as the token.
func (i *Issuer) AcquireToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "acquire token")
	defer span.End()

	token, err := i.acquireToken(ctx)
	if err != nil {
		span.SetAttributes(statusAttribute(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return token, nil
}

func (i *Issuer) acquireToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, http.NoBody)
	if err != nil {
		return "", &AuthError{Message: "error creating HTTP request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(subscriptionKeyHeader, i.subscriptionKey)

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &AuthError{Message: "error sending request", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenSize))
	if err != nil {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "error reading response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: "empty token in response"}
	}

	return token, nil
}

// SetBearer sets the Authorization header for token.
func SetBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

func statusAttribute(err error) attribute.KeyValue {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return attribute.Int("http.status", authErr.StatusCode)
	}
	return attribute.Int("http.status", 0)
}
