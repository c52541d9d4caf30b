package synthesis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lodestone-labs/synapse/internal/memory"
)

// periodBucketMin is the input size above which per-bucket syntheses are
// produced in addition to the whole-timeline one.
const periodBucketMin = 10

// TimelinePattern summarizes the temporal shape of a memory set.
type TimelinePattern struct {
	Periodic     bool    `json:"periodic"`
	MeanGap      float64 `json:"mean_gap_hours"`
	Variation    float64 `json:"coefficient_of_variation"`
	BucketCounts []int   `json:"bucket_counts"`
}

// AnalyzeTimeline sorts memories by creation time and detects periodicity and
// gap clustering. Periodic means the coefficient of variation of inter-arrival
// intervals is below 0.3. A gap more than twice the mean gap starts a new
// bucket.
func AnalyzeTimeline(mems []memory.Memory) ([]memory.Memory, [][]memory.Memory, TimelinePattern) {
	sorted := append([]memory.Memory(nil), mems...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var pattern TimelinePattern
	if len(sorted) < 2 {
		return sorted, [][]memory.Memory{sorted}, pattern
	}

	gaps := make([]float64, len(sorted)-1)
	var sum float64
	for i := 1; i < len(sorted); i++ {
		gaps[i-1] = sorted[i].CreatedAt.Sub(sorted[i-1].CreatedAt).Hours()
		sum += gaps[i-1]
	}
	mean := sum / float64(len(gaps))
	pattern.MeanGap = mean

	if mean > 0 {
		var variance float64
		for _, g := range gaps {
			variance += (g - mean) * (g - mean)
		}
		variance /= float64(len(gaps))
		pattern.Variation = math.Sqrt(variance) / mean
		pattern.Periodic = pattern.Variation < 0.3
	}

	buckets := [][]memory.Memory{{sorted[0]}}
	for i := 1; i < len(sorted); i++ {
		if mean > 0 && gaps[i-1] > 2*mean {
			buckets = append(buckets, nil)
		}
		last := len(buckets) - 1
		buckets[last] = append(buckets[last], sorted[i])
	}
	for _, b := range buckets {
		pattern.BucketCounts = append(pattern.BucketCounts, len(b))
	}
	return sorted, buckets, pattern
}

// temporal produces one whole-timeline narrative and, for larger inputs, one
// narrative per detected time bucket.
func (e *Engine) temporal(ctx context.Context, mems []memory.Memory) []*Synthesized {
	sorted, buckets, pattern := AnalyzeTimeline(mems)

	shape := "irregular"
	if pattern.Periodic {
		shape = "periodic"
	}
	instruction := fmt.Sprintf(
		"Narrate how these memories evolved over time, in chronological order. The timeline appears %s with %d distinct periods.",
		shape, len(buckets))
	extraFields := ",\n  \"key_events\": [\"event\", ...]"

	whole := e.generate(ctx, StrategyTemporal, "Timeline synthesis", instruction, sorted, extraFields)
	whole.Metadata["pattern"] = shape
	whole.Metadata["bucket_count"] = len(buckets)
	out := []*Synthesized{whole}

	if len(sorted) <= periodBucketMin {
		return out
	}
	for i, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		title := fmt.Sprintf("Period %d: %s", i+1, bucket[0].CreatedAt.Format("2006-01-02"))
		s := e.generate(ctx, StrategyTemporal, title,
			"Summarize what happened during this period of the timeline.", bucket, extraFields)
		s.Metadata["period_index"] = i
		s.Metadata["period_start"] = bucket[0].CreatedAt.Format(time.RFC3339)
		out = append(out, s)
	}
	return out
}
