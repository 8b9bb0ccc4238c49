// Package telemetry traces completion calls with OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

const (
	serviceName    = "gpt-cli"
	instrumentName = "github.com/cchalm/gpt-cli/internal/telemetry"
)

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	Enabled  bool
	Endpoint string // OTLP/HTTP endpoint URL; empty means the exporter default
	Version  string
}

// Provider hands out spans for completion calls. A disabled provider records nothing.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NewProvider creates a new telemetry provider
func NewProvider(ctx context.Context, config TelemetryConfig, logger logrus.FieldLogger) (*Provider, error) {
	if !config.Enabled {
		logger.Debug("telemetry disabled")
		return newProvider(noop.NewTracerProvider().Tracer(instrumentName), nil), nil
	}

	var opts []otlptracehttp.Option
	if config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(config.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", config.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	logger.WithField("endpoint", config.Endpoint).Debug("telemetry enabled")
	return newProvider(tp.Tracer(instrumentName), tp.Shutdown), nil
}

func newProvider(tracer trace.Tracer, shutdown func(context.Context) error) *Provider {
	return &Provider{tracer: tracer, shutdown: shutdown}
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// TurnTelemetry describes one exchange of a conversation
type TurnTelemetry struct {
	ConversationID string
	TurnIndex      int
	MessageCount   int // Messages sent to the model, including the new user message
}

// TraceCompletion runs fn inside a "completion" span annotated with turn
func (p *Provider) TraceCompletion(ctx context.Context, turn TurnTelemetry, fn func(context.Context) (string, error)) (string, error) {
	if p == nil {
		return fn(ctx)
	}
	ctx, span := p.tracer.Start(ctx, "completion", trace.WithAttributes(
		attribute.String("conversation.id", turn.ConversationID),
		attribute.Int("turn.index", turn.TurnIndex),
		attribute.Int("request.messages", turn.MessageCount),
	))
	defer span.End()

	reply, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reply, err
	}
	span.SetAttributes(attribute.Int("response.length", len(reply)))
	return reply, nil
}

// WrapCompleter returns a completer that traces every call to next as one turn of the given conversation
func (p *Provider) WrapCompleter(next completion.Completer, conversationID string) completion.Completer {
	return &tracedCompleter{provider: p, next: next, conversationID: conversationID}
}

type tracedCompleter struct {
	provider       *Provider
	next           completion.Completer
	conversationID string
	turns          int
}

func (tc *tracedCompleter) Complete(ctx context.Context, msgs []transcript.Message) (string, error) {
	turn := TurnTelemetry{
		ConversationID: tc.conversationID,
		TurnIndex:      tc.turns,
		MessageCount:   len(msgs),
	}
	tc.turns++
	return tc.provider.TraceCompletion(ctx, turn, func(ctx context.Context) (string, error) {
		return tc.next.Complete(ctx, msgs)
	})
}

// NewConversationID generates a new conversation UUID
func NewConversationID() string {
	return uuid.New().String()
}
