package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fin-harvest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fin-harvest",
	Short: "Financial statement harvester",
	Long:  "Visits financial-data sites for each company, extracts growth, performance, marginal-change and capex statements, and writes them per company.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is not an error.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
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
