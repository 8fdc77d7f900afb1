// File: cmd/swap.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/observability"
)

func newSwapCmd(factory componentFactory) *cobra.Command {
	var oldUsername, newUsername string

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Run a TransferPlus action between two accounts",
		Long: `Swaps the user IDs and password hashes bound to the two usernames in one
transaction, exactly as the agent's TransferPlus action does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := factory(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			action := schemas.TransferPlusAction(oldUsername, newUsername)
			if err := components.Executor.Execute(ctx, action); err != nil {
				return err
			}

			logger.Info("Credentials swapped",
				zap.String("old_username", oldUsername),
				zap.String("new_username", newUsername),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "swapped credentials of %q and %q\n", oldUsername, newUsername)
			return err
		},
	}

	swapCmd.Flags().StringVar(&oldUsername, "old", "", "username giving up the account (required)")
	swapCmd.Flags().StringVar(&newUsername, "new", "", "username receiving the account (required)")
	_ = swapCmd.MarkFlagRequired("old")
	_ = swapCmd.MarkFlagRequired("new")
	return swapCmd
}

func newLookupCmd(factory componentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup USERNAME",
		Short: "Print the credential row bound to a username (hash redacted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := factory(ctx, cfg, observability.GetLogger(), false)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			cred, err := components.Store.LookupCredential(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := json.Marshal(cred)
			if err != nil {
				return fmt.Errorf("failed to encode credential: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
