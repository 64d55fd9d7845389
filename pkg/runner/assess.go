package runner

import (
	"sort"
	"strings"

	"github.com/changelens/impact-engine/pkg/impact"
	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/risk"
	"github.com/changelens/impact-engine/pkg/score"
)

// Assessment pairs an impact result with its derived risk classification.
type Assessment struct {
	Band             risk.Band `json:"riskLevel"`
	HighRiskCount    int       `json:"highRiskCount"`
	ImpactedCount    int       `json:"impactedCount"`
	AffectedServices []string  `json:"affectedServices"`
	Recommendations  []string  `json:"recommendations"`
}

// Assess classifies an impact result: the band is that of the
// highest-criticality node in the blast radius, and the recommendations
// come from the rule table, fed by content flags derived from the changed
// ids. The changed nodes themselves are not scored; only their dependents
// drive the band and the high-risk count.
func Assess(g *model.Graph, changedIDs []string, result *impact.Result, weights score.Weights, thresholds risk.Thresholds) Assessment {
	scores, err := score.ScoreAll(g, nil, weights)
	if err != nil {
		// Weights are validated at startup; an empty score set keeps the
		// assessment usable.
		logging.Error("criticality scoring failed", "error", err)
		scores = map[string]score.Criticality{}
	}

	var (
		maxScore      float64
		highRisk      int
		impactedCount int
	)
	for id, dist := range result.Impacted {
		if dist == 0 {
			continue
		}
		impactedCount++
		c, ok := scores[id]
		if !ok {
			continue
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
		switch thresholds.Classify(c.Score) {
		case risk.BandCritical, risk.BandHigh:
			highRisk++
		}
	}

	band := thresholds.Classify(maxScore)
	flags := risk.DeriveFlags(changedIDs)
	return Assessment{
		Band:             band,
		HighRiskCount:    highRisk,
		ImpactedCount:    impactedCount,
		AffectedServices: affectedServices(result.Impacted),
		Recommendations:  risk.Recommend(band, impactedCount, highRisk, flags),
	}
}

// affectedServices groups the blast radius (changed nodes included) by
// service, for ids under a services/<name>/ path prefix.
func affectedServices(impacted map[string]int) []string {
	seen := make(map[string]bool)
	for id := range impacted {
		// Symbol ids carry a "<file>::<symbol>" suffix.
		path, _, _ := strings.Cut(id, "::")
		rest, ok := strings.CutPrefix(path, "services/")
		if !ok {
			continue
		}
		name, _, found := strings.Cut(rest, "/")
		if !found || name == "" {
			continue
		}
		seen[name] = true
	}
	services := make([]string, 0, len(seen))
	for name := range seen {
		services = append(services, name)
	}
	sort.Strings(services)
	return services
}
