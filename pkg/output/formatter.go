package output

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/changelens/impact-engine/pkg/builder"
	"github.com/changelens/impact-engine/pkg/impact"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/risk"
)

// PrintBuildReport prints a nicely formatted build report with colors
func PrintBuildReport(g *model.Graph, stats *model.GraphStats, rejected []builder.Rejected) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Println("Impact Engine - Build Report")
	bold.Println("============================")
	fmt.Printf("Graph: %s@%s (version %d)\n", g.RepoID, g.Branch, g.Version)
	fmt.Printf("Nodes: %d\n", stats.NodeCount)
	fmt.Printf("Edges: %d\n", stats.EdgeCount)
	fmt.Printf("Density: %.4f\n", stats.Density)
	fmt.Printf("Components: %d\n", stats.ComponentCount)
	if stats.IsDAG {
		green.Println("Acyclic: yes")
	} else {
		yellow.Println("Acyclic: no (dependency cycles present)")
	}
	if g.Approximate {
		yellow.Println("Metrics: approximate (sampled or deadline fallback)")
	} else {
		fmt.Println("Metrics: exact")
	}
	fmt.Println()

	// Rejected records
	if len(rejected) > 0 {
		red.Printf("REJECTED RECORDS (%d):\n", len(rejected))
		for _, r := range rejected {
			path := r.FilePath
			if path == "" {
				path = "(no path)"
			}
			yellow.Printf("  %s\n", path)
			fmt.Printf("    Reason: %s\n", r.Reason)
		}
		fmt.Println()
	}

	// Top central nodes
	if len(stats.TopCentralNodes) > 0 {
		bold.Println("TOP CENTRAL NODES:")
		for _, cn := range stats.TopCentralNodes {
			cyan.Printf("  %-50s", cn.ID)
			fmt.Printf(" %.4f\n", cn.Centrality)
		}
		fmt.Println()
	}

	summaryColor := green
	if len(rejected) > 0 {
		summaryColor = yellow
	}
	summaryColor.Printf("Summary: %d nodes, %d edges, %d rejected record(s)\n",
		stats.NodeCount, stats.EdgeCount, len(rejected))
}

// PrintImpactReport prints an impact summary for a set of changed nodes
func PrintImpactReport(res *impact.Result, band risk.Band, recommendations []string) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("IMPACT ANALYSIS:")
	for _, seed := range res.Changed {
		if seed.Known {
			fmt.Printf("  changed: %s\n", seed.ID)
		} else {
			yellow.Printf("  changed: %s (not in graph)\n", seed.ID)
		}
	}

	// Impacted nodes grouped by hop distance, nearest first
	byDistance := make(map[int][]string)
	maxDist := 0
	for id, dist := range res.Impacted {
		if dist == 0 {
			continue // the changed nodes themselves
		}
		byDistance[dist] = append(byDistance[dist], id)
		if dist > maxDist {
			maxDist = dist
		}
	}
	impactedCount := 0
	for dist := 1; dist <= maxDist; dist++ {
		ids := byDistance[dist]
		sort.Strings(ids)
		for _, id := range ids {
			cyan.Printf("  [%d] %s\n", dist, id)
			impactedCount++
		}
	}
	if impactedCount == 0 {
		green.Println("  no dependent components affected")
	}
	if res.Truncated {
		yellow.Println("  (traversal truncated by depth or deadline)")
	}
	fmt.Println()

	bandColor := green
	switch band {
	case risk.BandCritical:
		bandColor = red
	case risk.BandHigh:
		bandColor = yellow
	case risk.BandMedium:
		bandColor = cyan
	}
	bandColor.Printf("Risk: %s (%d impacted)\n", band, impactedCount)

	if len(recommendations) > 0 {
		bold.Println("RECOMMENDATIONS:")
		for _, rec := range recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}
