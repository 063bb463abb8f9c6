package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/config"
	"github.com/recera/perplexia/internal/observability"
	"github.com/recera/perplexia/pkg/reactive"
	"github.com/recera/perplexia/pkg/scheduler"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// app carries what every subcommand needs once the root pre-run has loaded
// the configuration
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	logger     *zap.Logger
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "perplexia",
		Short: "Perplexia - mindmaps for your study documents",
		Long: `Perplexia turns the mindmaps generated for uploaded PDFs into styled,
laid-out graphs. It can print them, browse them in the terminal, serve them
to browsers over a live websocket, and keep an offline library.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Config file (default ./perplexia.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRenderCommand(a))
	rootCmd.AddCommand(newViewCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newFetchCommand(a))
	rootCmd.AddCommand(newProgressCommand(a))
	rootCmd.AddCommand(newSummaryCommand(a))
	rootCmd.AddCommand(newQuizCommand(a))

	return rootCmd
}

func (a *app) setup() error {
	if err := config.Configure(a.v, a.configFile); err != nil {
		return err
	}
	if a.logLevel != "" {
		a.v.Set("logger.level", a.logLevel)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	a.logger = observability.GetLogger()
	scheduler.SetDebugLog(a.logger.Named("scheduler").Sugar().Debug)
	reactive.SetDebugLog(a.logger.Named("reactive").Sugar().Debug)
	a.logger.Debug("configuration loaded",
		zap.String("file", a.v.ConfigFileUsed()),
		zap.String("source", cfg.Source.Kind))
	return nil
}
