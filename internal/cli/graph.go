package cli

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/synapse/internal/cluster"
	"github.com/lodestone-labs/synapse/internal/layout"
	"github.com/lodestone-labs/synapse/internal/relgraph"
	"github.com/lodestone-labs/synapse/internal/scoring"
)

var (
	graphAlgorithm  string
	graphClustering string
	graphSizing     string
	graphColors     string
	graphOrphans    bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Lay out the knowledge graph for rendering",
	Long:  "Algorithms: force_directed, hierarchical, circular, radial, timeline, clustered.",
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphAlgorithm, "algorithm", "force_directed", "layout algorithm")
	graphCmd.Flags().StringVar(&graphClustering, "clustering", "", "node partitioning: community, tag, type")
	graphCmd.Flags().StringVar(&graphSizing, "sizing", "importance", "node sizing: importance, connections")
	graphCmd.Flags().StringVar(&graphColors, "colors", "type", "color scheme: type, importance, age, cluster")
	graphCmd.Flags().BoolVar(&graphOrphans, "orphans", false, "include nodes with no relationships")
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	mems, err := db.ListMemories(ctx)
	if err != nil {
		return err
	}

	scorer := scoring.NewScorer()
	if cfg.Analysis.TemporalWindowHours > 0 {
		scorer.TemporalWindow = time.Duration(cfg.Analysis.TemporalWindowHours) * time.Hour
	}
	analyzer := relgraph.New(db, scorer, cfg.Analysis)

	var rels []relgraph.Score
	seen := make(map[string]bool)
	for i := range mems {
		direct := analyzer.FilterAndRank(analyzer.Analyze(&mems[i], mems, nil), cfg.Analysis.MaxConnections)
		for _, rel := range direct {
			a, b := rel.TargetID, rel.RelatedID
			if b < a {
				a, b = b, a
			}
			if seen[a+"|"+b] {
				continue
			}
			seen[a+"|"+b] = true
			rels = append(rels, rel)
		}
	}

	graph, err := layout.Build(mems, rels, layout.Options{
		Algorithm:      layout.Algorithm(graphAlgorithm),
		Clustering:     layout.Clustering(graphClustering),
		Sizing:         layout.Sizing(graphSizing),
		Colors:         layout.ColorScheme(graphColors),
		IncludeOrphans: graphOrphans,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(graph)
}

var clustersStrategy string

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Group stored memories into theme clusters",
	RunE:  runClusters,
}

func init() {
	clustersCmd.Flags().StringVar(&clustersStrategy, "strategy", "tag", "clustering strategy: tag, semantic, hierarchy")
}

func runClusters(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	mems, err := db.ListMemories(ctx)
	if err != nil {
		return err
	}

	clusterer := cluster.New(nil)
	if cfg.Synthesis.ClusterSeed != 0 {
		clusterer.Seed = cfg.Synthesis.ClusterSeed
	}

	var out any
	switch clustersStrategy {
	case "semantic":
		out = clusterer.Semantic(mems)
	case "hierarchy":
		out = clusterer.BuildHierarchy(mems)
	default:
		out = clusterer.ByTag(mems)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
