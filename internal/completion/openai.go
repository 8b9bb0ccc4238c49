package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/cchalm/gpt-cli/internal/transcript"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = openai.GPT4o
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	logger     logrus.FieldLogger
}

// NewOpenAI creates a client. The API key is sent as a bearer token on every request.
func NewOpenAI(opts Options) *OpenAIClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIKey}),
			Base:   opts.baseTransport(),
		},
	}
	return &OpenAIClient{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		model:      model,
		logger:     opts.logger(),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{"model": c.model, "messages": len(msgs)}).Debug("sending completion request")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read error response (status %d): %w", resp.StatusCode, err)
		}
		return "", &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var parsed openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoCompletion
	}
	c.logger.WithFields(logrus.Fields{
		"prompt_tokens":     parsed.Usage.PromptTokens,
		"completion_tokens": parsed.Usage.CompletionTokens,
	}).Debug("completion received")
	return parsed.Choices[0].Message.Content, nil
}
