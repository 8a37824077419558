package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gqlws "github.com/wagiedev/graphql-ws-go"
)

func queryCmd(flags *globalFlags) *cobra.Command {
	var (
		variables string
		vars      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Run a query or mutation and print the result frame",
		Long: `Run a one-shot operation and print the first frame the server sends
for it as a JSON line. An error frame is printed as well and makes the
command exit with a non-zero status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.requireURL(); err != nil {
				return err
			}

			vs, err := parseVariables(variables, vars)
			if err != nil {
				return err
			}

			ctx, cancel := flags.withTimeout(cmd.Context())
			defer cancel()

			result, err := gqlws.Query(ctx, flags.url, args[0], vs, flags.clientOptions()...)
			if err != nil {
				return err
			}

			if err := printFrame(cmd, result); err != nil {
				return err
			}

			if result.Type == gqlws.FrameTypeError {
				return fmt.Errorf("server error: %s", result.ErrorMessage())
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&variables, "variables", "", "operation variables as a JSON object")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "operation variable, key=value (repeatable)")

	return cmd
}
