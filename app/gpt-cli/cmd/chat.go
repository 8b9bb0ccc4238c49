package cmd

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cchalm/gpt-cli/internal/session"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Reads one line at a time and sends the whole transcript to the model. The reply
is appended and the transcript saved after every exchange. Enter 'exit' or
'quit', close the input, or interrupt with Ctrl-C to end the session.`,
		Args: cobra.NoArgs,
		RunE: a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := setupContext(cmd.Context(), a.logger)
	defer stop()

	store, err := a.transcriptStore()
	if err != nil {
		return err
	}
	completer, shutdown, err := a.newCompleter(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	a.logger.WithFields(logrus.Fields{
		"history":  store.Path(),
		"provider": a.cfg.Provider,
	}).Info("starting chat session")

	loop := session.New(store, completer,
		session.WithPrompt(isInteractive(cmd.InOrStdin())),
		session.WithLogger(a.logger),
	)
	err = loop.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		// Interrupted; completed turns are already saved
		a.logger.Info("chat session interrupted")
		return nil
	}
	return err
}
