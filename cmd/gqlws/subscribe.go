package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	gqlws "github.com/wagiedev/graphql-ws-go"
)

func subscribeCmd(flags *globalFlags) *cobra.Command {
	var (
		variables string
		vars      map[string]string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "subscribe <document>",
		Short: "Start a subscription and print its data frames",
		Long: `Start a subscription and print every data frame as a JSON line until
the server ends it, --limit frames were printed, or the command is
interrupted. The subscription is stopped before the command exits. A
subscription the server ends with an error frame prints that frame and makes
the command exit with a non-zero status.`,
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

			printed := 0

			for f, err := range gqlws.Subscribe(ctx, flags.url, args[0], vs, flags.clientOptions()...) {
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}

					return err
				}

				if err := printFrame(cmd, f); err != nil {
					return err
				}

				if f.Type == gqlws.FrameTypeError {
					return fmt.Errorf("subscription failed: %s", f.ErrorMessage())
				}

				printed++
				if limit > 0 && printed >= limit {
					return nil
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&variables, "variables", "", "operation variables as a JSON object")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "operation variable, key=value (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many frames (0 means no limit)")

	return cmd
}
