// Package llm provides the structured-completion port used by the tier-3
// resolver. The only operation the pipeline needs is a JSON-mode chat
// completion decoded into a caller-supplied schema value.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/logging"
)

// StructuredCompleter is the abstract LLM port: one prompt in, one value of
// the requested schema out.
type StructuredCompleter interface {
	// StructuredComplete sends prompt and decodes the model's JSON reply
	// into out. Returns an llm-kind error on timeout or schema violation.
	StructuredComplete(ctx context.Context, prompt string, out any) error
	// Enabled reports whether a provider is configured.
	Enabled() bool
}

// Client implements StructuredCompleter over the OpenAI chat API.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
	enabled bool
}

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	RatePerMin int
}

// NewClient builds a client. With no API key the client is disabled: calls
// fail fast with an llm error, and tier 3 marks the links it would have
// sent UNRESOLVABLE.
func NewClient(opts Options) *Client {
	logger := logging.Component("llm")
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerMin <= 0 {
		opts.RatePerMin = 60
	}
	if opts.APIKey == "" {
		logger.Info("no api key configured, llm resolution disabled")
		return &Client{logger: logger}
	}
	return &Client{
		api:     openai.NewClient(opts.APIKey),
		model:   opts.Model,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMin)), opts.RatePerMin),
		logger:  logger,
		enabled: true,
	}
}

func (c *Client) Enabled() bool { return c.enabled }

// StructuredComplete performs a JSON-mode completion with the configured
// wall-clock timeout and decodes the reply into out.
func (c *Client) StructuredComplete(ctx context.Context, prompt string, out any) error {
	if !c.enabled {
		return errors.New(errors.KindLLM, "llm client not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		return errors.Wrap(err, errors.KindLLM, "rate limiter wait failed")
	}

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a precise code reference resolver. Reply with a single JSON object matching the requested schema, nothing else.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.0,
	})
	if err != nil {
		return errors.Wrap(err, errors.KindLLM, "completion failed")
	}
	if len(resp.Choices) == 0 {
		return errors.New(errors.KindLLM, "completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("structured completion",
		"prompt_length", len(prompt),
		"response_length", len(content),
		"tokens_used", resp.Usage.TotalTokens,
	)

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrapf(err, errors.KindLLM, "response violates schema: %s", truncate(content, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
