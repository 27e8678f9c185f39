package cli

import (
	"log/slog"
	"os"

	"github.com/me/goaps/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagActor     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking GOAPS_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("GOAPS_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// defaultActor returns the identity recorded in adjustment audit logs.
func defaultActor() string {
	if a := os.Getenv("GOAPS_ACTOR"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

// NewRootCmd creates the root cobra command for the goaps CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "goaps",
		Short: "GoAPS — production scheduling job orchestration",
		Long:  "GoAPS submits scheduling jobs to the optimization engine and manages the resulting plans.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, flagActor, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "GoAPS server URL (or GOAPS_SERVER env)")
	root.PersistentFlags().StringVar(&flagActor, "actor", defaultActor(), "Actor recorded in audit logs (or GOAPS_ACTOR env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newJobsCmd(),
		newPlansCmd(),
		newEngineCmd(),
	)

	return root
}
