// Package cmd holds the sansm CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sanoj619/SanSM/internal/config"
	"github.com/sanoj619/SanSM/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sansm",
	Short: "NSE market scanner: OHL scan, F&O universe refresh and price alerts",
	Long: `SanSM polls NSE India quotes, records stocks that opened at their
intraday low or high, keeps the F&O equity list current and publishes
price alerts.

Commands:
    serve       HTTP API on :3000 plus optional cron jobs
    scan        run one OHL scan over the tracked stocks
    refresh     rebuild the tracked F&O equity list
    quote       fetch, record and alert one symbol
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or "+config.DefaultPath+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(quoteCmd)
}

// initConfig loads and validates the configuration, then sets up logging.
func initConfig() error {
	c, err := config.Load(config.ResolvePath(cfgFile))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := logger.Init(loggerConfig(c)); err != nil {
		return err
	}
	cfg = c
	return nil
}

func loggerConfig(c *config.Config) logger.Config {
	return logger.Config{
		Level:         c.Logging.Level,
		Format:        c.Logging.Format,
		FileEnabled:   c.Logging.FileEnabled,
		FilePath:      c.Logging.FilePath,
		RotationSize:  c.Logging.RotationSize,
		RetentionDays: c.Logging.RetentionDays,
		ServiceName:   "sansm",
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
