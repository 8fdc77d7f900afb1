// File: cmd/schema.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the action schema text given to the producer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), schemas.RenderSchema())
			return err
		},
	}
}

func newParseCmd() *cobra.Command {
	var stripFences bool

	parseCmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Decode a producer payload and print the normalized response",
		Long: `Reads one producer payload from a file, or from stdin when the argument is
omitted or "-", decodes it strictly and prints the normalized JSON. Exits
non-zero when the payload does not match the action schema.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("strip-fences") {
				stripFences = cfg.Agent().StripCodeFences
			}

			raw, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if stripFences {
				raw = llmutil.StripCodeFence(raw)
			}

			resp, err := schemas.ParseResponse(raw)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	parseCmd.Flags().BoolVar(&stripFences, "strip-fences", false, "tolerate a markdown code fence around the payload (default from agent.strip_code_fences)")
	return parseCmd
}

func readPayload(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(strings.TrimSpace(args[0]))
	if err != nil {
		return "", fmt.Errorf("failed to read payload file: %w", err)
	}
	return string(b), nil
}
