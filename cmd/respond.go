// File: cmd/respond.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/internal/observability"
	"github.com/xkilldash9x/plusdesk/internal/service"
)

func newRespondCmd(factory componentFactory) *cobra.Command {
	var rawFile string

	respondCmd := &cobra.Command{
		Use:   "respond [MESSAGE...]",
		Short: "Run one support interaction and print the reply",
		Long: `Sends MESSAGE to the producer, executes the action it chose and prints the
reply text. Nothing is printed when the producer aborts. With --raw, a stored
producer payload is processed instead and no producer is contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			offline := rawFile != ""
			if !offline && len(args) == 0 {
				return fmt.Errorf("a message is required unless --raw is given")
			}

			components, err := factory(ctx, cfg, logger, !offline)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			var reply *service.Reply
			if offline {
				raw, err := readPayload(cmd, []string{rawFile})
				if err != nil {
					return err
				}
				responder := components.Responder
				if responder == nil {
					responder = service.NewResponder(nil, components.Executor, cfg.Agent(), logger)
				}
				reply, err = responder.HandleRaw(ctx, raw)
				if err != nil {
					return err
				}
			} else {
				reply, err = components.Responder.Handle(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
			}

			logger.Debug("Interaction complete",
				zap.String("interaction_id", reply.InteractionID),
				zap.Stringer("action", reply.Action.Kind),
				zap.Bool("suppressed", reply.Suppress),
			)
			if reply.Suppress {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return err
		},
	}

	respondCmd.Flags().StringVar(&rawFile, "raw", "", "process a stored producer payload from this file (\"-\" for stdin)")
	return respondCmd
}
