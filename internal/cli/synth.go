package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/memory"
	"github.com/lodestone-labs/synapse/internal/synthesis"
)

var (
	synthIDs       []string
	synthCitations bool
	synthLinks     bool
)

var synthCmd = &cobra.Command{
	Use:   "synthesize <strategy>",
	Short: "Synthesize narratives from stored memories",
	Long:  "Strategies: hierarchical, temporal, semantic, causal, comparative, abstractive.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSynthesize,
}

func init() {
	synthCmd.Flags().StringSliceVar(&synthIDs, "memories", nil, "memory IDs to synthesize (empty = all)")
	synthCmd.Flags().BoolVar(&synthCitations, "citations", false, "append source citations to narratives")
	synthCmd.Flags().BoolVar(&synthLinks, "links", false, "persist links between results and sources")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), using fallback narratives\n", err)
		llmClient = nil
	}
	engine := synthesis.New(llmClient, cfg.Synthesis)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var mems []memory.Memory
	if len(synthIDs) == 0 {
		mems, err = db.ListMemories(ctx)
		if err != nil {
			return err
		}
	} else {
		for _, id := range synthIDs {
			m, err := db.GetMemory(ctx, id)
			if err != nil {
				return err
			}
			mems = append(mems, *m)
		}
	}

	results, links, err := engine.Synthesize(ctx, mems, synthesis.Request{
		Strategy:         synthesis.Strategy(args[0]),
		IncludeCitations: synthCitations,
		CreateLinks:      synthLinks,
	})
	if err != nil {
		return err
	}

	if len(links) > 0 {
		if err := db.SaveSynthesisLinks(ctx, links); err != nil {
			return fmt.Errorf("save links: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"strategy": args[0],
		"count":    len(results),
		"results":  results,
	})
}
