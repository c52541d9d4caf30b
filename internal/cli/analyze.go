package cli

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/synapse/internal/relgraph"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

var (
	analyzeDepth    int
	analyzeMaxConns int
	analyzeSignals  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <memory-id>",
	Short: "Analyze relationships for a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeDepth, "depth", 0, "network expansion depth (0 = configured default)")
	analyzeCmd.Flags().IntVar(&analyzeMaxConns, "max-connections", 0, "max direct relationships (0 = configured default)")
	analyzeCmd.Flags().StringVar(&analyzeSignals, "signals", "", "comma-separated signal types (empty = all)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	scorer := scoring.NewScorer()
	if cfg.Analysis.TemporalWindowHours > 0 {
		scorer.TemporalWindow = time.Duration(cfg.Analysis.TemporalWindowHours) * time.Hour
	}
	analyzer := relgraph.New(db, scorer, cfg.Analysis)

	var signals []scoring.SignalType
	for _, part := range strings.Split(analyzeSignals, ",") {
		if part = strings.TrimSpace(part); part != "" {
			signals = append(signals, scoring.SignalType(part))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := analyzer.AnalyzeMemory(ctx, args[0], relgraph.Options{
		Signals:        signals,
		MaxConnections: analyzeMaxConns,
		Depth:          analyzeDepth,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
