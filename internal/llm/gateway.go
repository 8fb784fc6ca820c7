package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/metasphere-xyz/texttransform/internal/metrics"
)

// ErrEmptyCompletion indicates the backend returned no usable content.
var ErrEmptyCompletion = errors.New("empty completion")

// Request is one prompt pair with its sampling settings.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Gateway calls the chat backend with bounded retries on transient
// failures. Rate limits and server-side errors are retried with
// exponential backoff; everything else fails immediately.
type Gateway struct {
	Client         Client
	Model          string
	MaxAttempts    int
	InitialBackoff time.Duration
	Metrics        *metrics.Metrics

	// sleep is swapped for a recorder in tests.
	sleep func(time.Duration)
}

// NewGateway wires a gateway with the stock retry policy when the
// attempt or backoff settings are zero.
func NewGateway(client Client, model string, maxAttempts int, initialBackoff time.Duration, m *metrics.Metrics) *Gateway {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	return &Gateway{
		Client:         client,
		Model:          model,
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
		Metrics:        m,
	}
}

// Complete returns the trimmed assistant content for one prompt pair.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	if g.Client == nil || strings.TrimSpace(g.Model) == "" {
		return "", errors.New("gateway not configured")
	}
	attempts := g.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := g.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	sleep := g.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	chatReq := openai.ChatCompletionRequest{
		Model: g.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		N:           1,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := g.Client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			var out string
			if len(resp.Choices) > 0 {
				out = strings.TrimSpace(resp.Choices[0].Message.Content)
			}
			if out == "" {
				g.Metrics.RecordCompletionAttempt("empty")
				return "", ErrEmptyCompletion
			}
			g.Metrics.RecordCompletionAttempt("ok")
			return out, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			break
		}
		g.Metrics.RecordCompletionAttempt("retry")
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("completion failed, retrying")
		sleep(backoff)
		backoff *= 2
	}
	g.Metrics.RecordCompletionAttempt("error")
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

// retryable reports whether the error is a rate limit or a server-side
// failure worth another attempt.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}
