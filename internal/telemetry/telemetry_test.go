package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

func newRecordingProvider() (*Provider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return newProvider(tp.Tracer(instrumentName), tp.Shutdown), sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTraceCompletion(t *testing.T) {
	p, sr := newRecordingProvider()

	reply, err := p.TraceCompletion(context.Background(), TurnTelemetry{ConversationID: "c1", TurnIndex: 2, MessageCount: 5},
		func(ctx context.Context) (string, error) { return "hello", nil })
	require.NoError(t, err)
	require.Equal(t, "hello", reply)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "completion", spans[0].Name())
	a := attrs(spans[0])
	require.Equal(t, "c1", a["conversation.id"].AsString())
	require.EqualValues(t, 2, a["turn.index"].AsInt64())
	require.EqualValues(t, 5, a["request.messages"].AsInt64())
	require.EqualValues(t, 5, a["response.length"].AsInt64())
}

func TestTraceCompletion_Error(t *testing.T) {
	p, sr := newRecordingProvider()
	boom := errors.New("boom")

	_, err := p.TraceCompletion(context.Background(), TurnTelemetry{}, func(ctx context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestWrapCompleter(t *testing.T) {
	p, sr := newRecordingProvider()
	next := completion.CompleterFunc(func(ctx context.Context, msgs []transcript.Message) (string, error) {
		return "reply", nil
	})
	c := p.WrapCompleter(next, "conv")

	for i := 0; i < 2; i++ {
		reply, err := c.Complete(context.Background(), []transcript.Message{transcript.UserMessage("hi")})
		require.NoError(t, err)
		require.Equal(t, "reply", reply)
	}

	spans := sr.Ended()
	require.Len(t, spans, 2)
	require.EqualValues(t, 0, attrs(spans[0])["turn.index"].AsInt64())
	require.EqualValues(t, 1, attrs(spans[1])["turn.index"].AsInt64())
	require.Equal(t, "conv", attrs(spans[1])["conversation.id"].AsString())
	require.EqualValues(t, 1, attrs(spans[1])["request.messages"].AsInt64())
}

func TestDisabledProvider(t *testing.T) {
	logger := logrus.New()
	p, err := NewProvider(context.Background(), TelemetryConfig{Enabled: false}, logger)
	require.NoError(t, err)

	reply, err := p.TraceCompletion(context.Background(), TurnTelemetry{}, func(ctx context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", reply)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	reply, err := p.TraceCompletion(context.Background(), TurnTelemetry{}, func(ctx context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", reply)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.NotEqual(t, id, NewConversationID())
}
