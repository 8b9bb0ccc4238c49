package cmd

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cchalm/gpt-cli/internal/config"
)

// Commands carrying this annotation run without an API key
const skipCredentialCheck = "skipCredentialCheck"

// app holds the state shared by the commands of a single invocation
type app struct {
	cfg    config.Config
	logger *logrus.Logger

	// Flag overrides, empty when not given
	historyFile   string
	historyFormat string
	itemsFile     string
	provider      string
	model         string
	logLevel      string
}

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	a := &app{logger: logrus.New()}

	rootCmd := &cobra.Command{
		Use:   "gpt-cli",
		Short: "Chat with a language model from the command line",
		Long: `gpt-cli keeps a conversation transcript on disk, sends it to a chat completion
endpoint and appends the reply. It also keeps a separate collection of
stand-alone prompt/response items.

The API key is read from OPENAI_API_KEY (or ANTHROPIC_API_KEY when
GPTCLI_PROVIDER=anthropic), optionally from a .env file.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadRootConfig,
		Annotations:       map[string]string{skipCredentialCheck: "true"},
		// Unknown subcommands print the usage whatever flags follow them
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Unknown command %q\n\n", args[0])
			}
			return cmd.Usage()
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&a.historyFile, "history-file", "", "Transcript file (default $GPTCLI_HISTORY_FILE or history.json)")
	rootCmd.PersistentFlags().StringVar(&a.historyFormat, "history-format", "", "Transcript format: json, yaml or lines (default inferred from the file extension)")
	rootCmd.PersistentFlags().StringVar(&a.itemsFile, "items-file", "", "Item collection file (default $GPTCLI_ITEMS_FILE or data.json)")
	rootCmd.PersistentFlags().StringVar(&a.provider, "provider", "", "Completion provider: openai or anthropic")
	rootCmd.PersistentFlags().StringVar(&a.model, "model", "", "Model name (default depends on the provider)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newChatCmd(a),
		newHistoryCmd(a),
		newClearCmd(a),
		newCreateCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line. A missing API key is reported on stdout and is not an error.
func Execute() error {
	return execute(NewRootCmd())
}

func execute(rootCmd *cobra.Command) error {
	err := rootCmd.Execute()
	if errors.Is(err, config.ErrMissingCredential) {
		fmt.Fprintln(rootCmd.OutOrStdout(), err)
		return nil
	}
	return err
}

func (a *app) loadRootConfig(cmd *cobra.Command, _ []string) error {
	a.logger.SetOutput(cmd.ErrOrStderr())

	cfg, err := config.Load(a.logger)
	if err != nil {
		return err
	}
	overrides := map[*string]string{
		&cfg.HistoryFile:   a.historyFile,
		&cfg.HistoryFormat: a.historyFormat,
		&cfg.ItemsFile:     a.itemsFile,
		&cfg.Provider:      a.provider,
		&cfg.Model:         a.model,
		&cfg.LogLevel:      a.logLevel,
	}
	for dest, v := range overrides {
		if v != "" {
			*dest = v
		}
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.logger.SetLevel(level)
	a.cfg = cfg

	if cmd.Annotations[skipCredentialCheck] == "true" || cmd.Name() == "help" {
		return nil
	}
	// Checked before any file or network access
	return cfg.Validate()
}
