package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	gqlws "github.com/wagiedev/graphql-ws-go"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	url         string
	headers     map[string]string
	initHeaders map[string]string
	debug       bool
	timeout     time.Duration
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "gqlws",
		Short: "Run GraphQL operations over the graphql-ws protocol",
		Long: `gqlws talks to GraphQL servers that implement the Apollo graphql-ws
(subscriptions-transport-ws) protocol over WebSocket.

Queries print the first frame the server sends. Subscriptions print every
data frame until the server completes the operation or the command is
interrupted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.url, "url", "u", os.Getenv("GQLWS_URL"),
		"server URL (defaults to $GQLWS_URL)")
	rootCmd.PersistentFlags().StringToStringVarP(&flags.headers, "header", "H", nil,
		"WebSocket upgrade header, key=value (repeatable)")
	rootCmd.PersistentFlags().StringToStringVar(&flags.initHeaders, "init-header", nil,
		"connection_init header, key=value (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging to stderr")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0,
		"overall deadline for the command (0 means none)")

	rootCmd.AddCommand(
		queryCmd(flags),
		subscribeCmd(flags),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// clientOptions builds client options from the global flags.
func (f *globalFlags) clientOptions() []gqlws.Option {
	level := slog.LevelWarn
	if f.debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []gqlws.Option{gqlws.WithLogger(logger)}

	for k, v := range f.headers {
		opts = append(opts, gqlws.WithHeader(k, v))
	}

	if len(f.initHeaders) > 0 {
		opts = append(opts, gqlws.WithInitHeaders(f.initHeaders))
	}

	return opts
}

// withTimeout applies the --timeout flag to ctx.
func (f *globalFlags) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, f.timeout)
}

func (f *globalFlags) requireURL() error {
	if f.url == "" {
		return fmt.Errorf("no server URL: pass --url or set GQLWS_URL")
	}

	return nil
}

// parseVariables merges a JSON object with key=value overrides.
// Override values are decoded as JSON when possible and kept as strings otherwise.
func parseVariables(raw string, overrides map[string]string) (map[string]any, error) {
	vars := map[string]any{}

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return nil, fmt.Errorf("parse --variables: %w", err)
		}
	}

	for k, v := range overrides {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			vars[k] = decoded
		} else {
			vars[k] = v
		}
	}

	if len(vars) == 0 {
		return nil, nil
	}

	return vars, nil
}

// printFrame writes one frame to stdout as a JSON line.
func printFrame(cmd *cobra.Command, f *gqlws.Frame) error {
	line, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(line))

	return err
}
