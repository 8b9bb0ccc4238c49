// Package completion sends a transcript to a remote language model and returns the generated reply.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cchalm/gpt-cli/internal/transcript"
	"github.com/cchalm/gpt-cli/internal/transport"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrNoCompletion is returned when the endpoint answers successfully but with no candidates
	ErrNoCompletion = errors.New("no completion returned")
	// ErrMalformedResponse is returned when a successful response body cannot be decoded
	ErrMalformedResponse = errors.New("malformed completion response")
)

// RemoteError is returned when the endpoint answers with a non-success status
type RemoteError struct {
	StatusCode int
	Body       string // The response body text, as sent by the endpoint
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Completer produces the next assistant reply for a transcript
type Completer interface {
	Complete(ctx context.Context, msgs []transcript.Message) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, msgs []transcript.Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	return f(ctx, msgs)
}

// Options configures a completion client
type Options struct {
	APIKey    string
	BaseURL   string // Endpoint root; empty means the provider default
	Model     string
	MaxTokens int64 // Only used by providers that require an output limit

	Headers    http.Header  // Extra static headers, e.g. OpenRouter attribution
	HTTPClient *http.Client // Optional; its Transport is used as the base transport
	Logger     logrus.FieldLogger
}

// New creates a client for the named provider
func New(provider string, opts Options) (Completer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("an API key is required")
	}
	switch strings.ToLower(provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderAnthropic:
		return NewAnthropic(opts), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", provider)
	}
}

// baseTransport layers the header and logging decorators over the caller's transport
func (opts Options) baseTransport() http.RoundTripper {
	var rt http.RoundTripper
	if opts.HTTPClient != nil {
		rt = opts.HTTPClient.Transport
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	if opts.Logger != nil {
		rt = transport.WithLogging(rt, opts.Logger)
	}
	if len(opts.Headers) > 0 {
		rt = transport.WithHeaders(rt, opts.Headers)
	}
	return rt
}

func (opts Options) logger() logrus.FieldLogger {
	if opts.Logger != nil {
		return opts.Logger
	}
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
