// Package main provides vmctl, a command line client for the negotiation API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"visionmatch/internal/client"
)

const appName = "vmctl"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	server   string
	token    string
	logLevel string
	logger   *slog.Logger
}

func (g *globals) client() *client.Client {
	return client.New(g.server, g.token)
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Negotiate creator requests from the terminal",
		Long: `vmctl talks to the VisionMatch API. It can respond to requests,
post offers and counters, follow a negotiation live and check escrow status.

The server and token default to $VISIONMATCH_URL and $VISIONMATCH_TOKEN.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logger = newLogger(g.logLevel)
			slog.SetDefault(g.logger)
		},
	}

	cmd.PersistentFlags().StringVar(&g.server, "server", envOr("VISIONMATCH_URL", "http://localhost:8080/api/v1"), "API base URL")
	cmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("VISIONMATCH_TOKEN"), "Bearer access token")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		pricingCmd(),
		requestCmd(g),
		respondCmd(g),
		messagesCmd(g),
		sendCmd(g),
		offerCmd(g, false),
		offerCmd(g, true),
		acceptCmd(g),
		negotiationCmd(g),
		paymentStatusCmd(g),
		watchCmd(g),
	)
	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
