package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/observability"
)

const defaultEnvFile = ".env"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	envFile  string
	logLevel string
	devLogs  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "site",
		Short:         "Review site API, content seeding and renderer tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file read before the process environment (\"\" to skip)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.PersistentFlags().BoolVar(&opts.devLogs, "dev-logs", false, "human readable console logs")

	cmd.AddCommand(
		newServeCmd(opts),
		newSeedCmd(opts),
		newRenderCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(name string) (*zap.Logger, error) {
	logger, err := observability.NewLogger(observability.LoggerOptions{
		Level:       o.logLevel,
		Development: o.devLogs,
		Service:     "site",
		Version:     buildVersion(),
	})
	if err != nil {
		return nil, err
	}
	return logger.Named(name), nil
}
