package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobcompass/internal/app"
	"jobcompass/internal/config"
	"jobcompass/internal/logger"
)

const name = "jobcompass-admin"

var rootCmd = &cobra.Command{
	Use:           name,
	Short:         "jobcompass-admin runs maintenance tasks against the jobcompass database and queues",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Fatalf("binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json")); err != nil {
		log.Fatalf("binding json flag: %v", err)
	}
}

// bootstrap loads the configuration and builds the service graph for one command.
// The caller closes the returned app.
func bootstrap(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	zl, err := logger.New(viper.GetBool("json") || cfg.Log.JSON, viper.GetBool("debug") || cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		_ = zl.Sync()
		return nil, nil, err
	}
	return a, zl, nil
}
