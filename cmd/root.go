package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forest-watch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "forest-watch",
	Short: "Forest fire-ban and conditions aggregator",
	Long:  "Reconciles fire-ban areas, the facilities directory, closure notices, and fire-danger districts into one versioned snapshot, with geocoding and caching.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
