package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/items"
	"github.com/cchalm/gpt-cli/internal/telemetry"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

// setupContext returns a context that is cancelled on the first interrupt. A second interrupt exits the process.
func setupContext(parent context.Context, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	interrupt := make(chan os.Signal, 1)
	stopped := make(chan struct{})
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
		case <-stopped:
			return
		}
		logger.Info("Interrupt signal detected, shutting down...")
		cancel()
		select {
		case <-interrupt:
			logger.Fatal("Forcing shutdown")
		case <-stopped:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(interrupt)
			close(stopped)
			cancel()
		})
	}
	return ctx, stop
}

// newCompleter creates the configured completion client, traced when telemetry is enabled. The returned function
// flushes telemetry and must be called when the command is done.
func (a *app) newCompleter(ctx context.Context) (completion.Completer, func(), error) {
	c, err := completion.New(a.cfg.Provider, a.cfg.CompletionOptions(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.TelemetryConfig{
		Enabled:  a.cfg.TelemetryEnabled,
		Endpoint: a.cfg.TelemetryEndpoint,
		Version:  version,
	}, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	conversationID := telemetry.NewConversationID()
	a.logger.WithField("conversation_id", conversationID).Debug("created completion client")

	shutdown := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			a.logger.WithError(err).Warn("failed to shut down telemetry")
		}
	}
	return tp.WrapCompleter(c, conversationID), shutdown, nil
}

func (a *app) transcriptStore() (*transcript.FileStore, error) {
	codec, err := transcript.CodecFor(a.cfg.HistoryFormat, a.cfg.HistoryFile)
	if err != nil {
		return nil, err
	}
	return transcript.NewFileStore(a.cfg.HistoryFile, codec), nil
}

func (a *app) itemStore() *items.FileStore {
	return items.NewFileStore(a.cfg.ItemsFile)
}

// isInteractive returns true if in is a terminal
func isInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
