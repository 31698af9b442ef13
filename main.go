package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pagedoc/internal/app"
	"pagedoc/internal/config"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagedoc",
	Short: "Paginated block documents",
	Long: `pagedoc keeps documents as numbered pages of blocks.

Text inserted in bulk, by hand, from an inbox folder or by an agent over MCP
is split across pages so no page grows past the configured block limit.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		boot := zap.NewNop()
		if verbose {
			boot, _ = zap.NewDevelopment()
		}
		var err error
		cfg, err = config.NewLoader(boot).Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dataDir != "" {
			overrideDataDir(cfg, dataDir)
		}

		logger, err = buildLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (overrides user and project config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the database, exports and inbox")
}

// buildLogger builds the production zap config, honoring log.level and
// log.encoding unless --verbose forces debug.
func buildLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Encoding != "" {
		zc.Encoding = lc.Encoding
	}
	if zc.Encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// overrideDataDir moves every derived path under dir.
func overrideDataDir(c *config.Config, dir string) {
	c.Storage.DataDir = dir
	c.Storage.DBPath = ""
	c.Storage.ExportDir = ""
	c.Inbox.Dir = ""
	c.ResolvePaths("")
}

// withApp starts an App for the duration of fn and saves open documents
// on the way out.
func withApp(ctx context.Context, fn func(a *app.App) error, opts ...app.Option) error {
	a := app.New(cfg, logger, opts...)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
