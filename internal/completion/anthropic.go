package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/cchalm/gpt-cli/internal/transcript"
)

const (
	DefaultAnthropicModel     = anthropic.ModelClaudeSonnet4_0
	DefaultAnthropicMaxTokens = 1024
)

// AnthropicClient talks to the Anthropic Messages API
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    logrus.FieldLogger
}

// NewAnthropic creates a client. The SDK's automatic retries are disabled: one call is one round trip.
func NewAnthropic(opts Options) *AnthropicClient {
	model := anthropic.Model(opts.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	reqOpts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Transport: opts.baseTransport()}),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    opts.logger(),
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(msgs)),
	}
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case transcript.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	c.logger.WithFields(logrus.Fields{"model": c.model, "messages": len(msgs)}).Debug("sending completion request")
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Error()
			}
			return "", &RemoteError{StatusCode: apiErr.StatusCode, Body: body}
		}
		return "", fmt.Errorf("failed to send completion request: %w", err)
	}

	var sb strings.Builder
	found := false
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", ErrNoCompletion
	}
	c.logger.WithFields(logrus.Fields{
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}).Debug("completion received")
	return sb.String(), nil
}
