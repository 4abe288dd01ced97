package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "fixdoc",
	Short: "Troubleshooting assistant for household device manuals",
	Long: `fixdoc indexes device manuals and answers troubleshooting questions
with citations to the manual passages the answer was drawn from.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config, ignored when missing")
}

// loadConfig reads the env file, then the config file and FIXDOC_* variables
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return config.Load(configPath)
}

// newLogger builds a zap logger from the log section of the config
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
