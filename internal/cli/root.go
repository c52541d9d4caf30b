package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Knowledge relationship and synthesis engine",
	Long:  "Synapse discovers relationships between knowledge items, clusters them into themes, synthesizes higher-level narratives, and lays out the resulting graph.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(clustersCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func openDB(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
