package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cchalm/gpt-cli/internal/items"
)

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <prompt>",
		Short: "Answer a prompt and store it as a new item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := setupContext(cmd.Context(), a.logger)
			defer stop()

			store := a.itemStore()
			collection, err := store.Load()
			if err != nil {
				return err
			}
			completer, shutdown, err := a.newCompleter(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			collection, item, err := items.Create(ctx, collection, strings.Join(args, " "), completer)
			if err != nil {
				return fmt.Errorf("failed to create item: %w", err)
			}
			if err := store.Save(collection); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created item %d\n", item.ID)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collection, err := a.itemStore().Load()
			if err != nil {
				return err
			}
			for _, it := range collection {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s -> %s\n", it.ID, it.Prompt, it.Response)
			}
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <prompt>",
		Short: "Replace an item's prompt and answer it again",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, stop := setupContext(cmd.Context(), a.logger)
			defer stop()

			store := a.itemStore()
			collection, err := store.Load()
			if err != nil {
				return err
			}
			completer, shutdown, err := a.newCompleter(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			collection, item, err := items.Update(ctx, collection, id, strings.Join(args[1:], " "), completer)
			if err != nil {
				return fmt.Errorf("failed to update item: %w", err)
			}
			if err := store.Save(collection); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %d\n", item.ID)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store := a.itemStore()
			collection, err := store.Load()
			if err != nil {
				return err
			}
			collection, err = items.Delete(collection, id)
			if err != nil {
				return fmt.Errorf("failed to delete item: %w", err)
			}
			if err := store.Save(collection); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
