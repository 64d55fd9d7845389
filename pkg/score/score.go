package score

import (
	"fmt"
	"math"

	"github.com/changelens/impact-engine/pkg/model"
)

// neutralSignal stands in for a missing external signal so absent telemetry
// does not bias scores toward artificially low risk.
const neutralSignal = 0.5

// Weights are the component weights of the composite criticality score.
// They must sum to 1.0.
type Weights struct {
	DependencyCount float64 `koanf:"dependency_count" json:"dependencyCount"`
	ChangeFrequency float64 `koanf:"change_frequency" json:"changeFrequency"`
	TestCoverageGap float64 `koanf:"test_coverage_gap" json:"testCoverageGap"`
	BusinessImpact  float64 `koanf:"business_impact" json:"businessImpact"`
}

// DefaultWeights returns the default component weights.
func DefaultWeights() Weights {
	return Weights{
		DependencyCount: 0.3,
		ChangeFrequency: 0.2,
		TestCoverageGap: 0.3,
		BusinessImpact:  0.2,
	}
}

// Validate enforces the sum-to-one invariant.
func (w Weights) Validate() error {
	sum := w.DependencyCount + w.ChangeFrequency + w.TestCoverageGap + w.BusinessImpact
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("criticality weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Signals are per-node external inputs not produced by this engine:
// change frequency from VCS history and business impact from service
// metadata. Either may be absent for any node.
type Signals struct {
	ChangeFrequency *float64 `json:"changeFrequency,omitempty"`
	BusinessImpact  *float64 `json:"businessImpact,omitempty"`
}

// Criticality is the composite score for one node, in [0,1], along with the
// raw component values that produced it.
type Criticality struct {
	Score           float64 `json:"score"`
	DependencyCount float64 `json:"dependencyCount"`
	ChangeFrequency float64 `json:"changeFrequency"`
	TestCoverageGap float64 `json:"testCoverageGap"`
	BusinessImpact  float64 `json:"businessImpact"`
}

// ScoreAll computes criticality for every node in the graph. Scoring is
// deterministic: identical graph and signals reproduce identical scores.
func ScoreAll(g *model.Graph, signals map[string]Signals, weights Weights) (map[string]Criticality, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	ids := g.NodeIDs()
	raw := make(map[string]Criticality, len(ids))
	for _, id := range ids {
		c := Criticality{
			ChangeFrequency: neutralSignal,
			BusinessImpact:  neutralSignal,
			TestCoverageGap: neutralSignal,
		}
		if m := g.Metrics[id]; m != nil {
			c.DependencyCount = float64(m.InDegree)
		}
		if sig, ok := signals[id]; ok {
			if sig.ChangeFrequency != nil {
				c.ChangeFrequency = *sig.ChangeFrequency
			}
			if sig.BusinessImpact != nil {
				c.BusinessImpact = *sig.BusinessImpact
			}
		}
		if node := g.Nodes[id]; node != nil && node.Attrs.TestCoverage != nil {
			c.TestCoverageGap = 1 - clamp(*node.Attrs.TestCoverage)
		}
		raw[id] = c
	}

	depNorm := newNormalizer(ids, raw, func(c Criticality) float64 { return c.DependencyCount })
	freqNorm := newNormalizer(ids, raw, func(c Criticality) float64 { return c.ChangeFrequency })
	gapNorm := newNormalizer(ids, raw, func(c Criticality) float64 { return c.TestCoverageGap })
	bizNorm := newNormalizer(ids, raw, func(c Criticality) float64 { return c.BusinessImpact })

	scores := make(map[string]Criticality, len(ids))
	for _, id := range ids {
		c := raw[id]
		c.Score = clamp(weights.DependencyCount*depNorm.norm(c.DependencyCount) +
			weights.ChangeFrequency*freqNorm.norm(c.ChangeFrequency) +
			weights.TestCoverageGap*gapNorm.norm(c.TestCoverageGap) +
			weights.BusinessImpact*bizNorm.norm(c.BusinessImpact))
		scores[id] = c
	}
	return scores, nil
}

// normalizer min-max scales a component over the node population. A zero
// range (single node, or uniform values) falls back to the clamped raw
// value rather than dividing by zero.
type normalizer struct {
	min, max float64
}

func newNormalizer(ids []string, raw map[string]Criticality, get func(Criticality) float64) normalizer {
	n := normalizer{min: math.Inf(1), max: math.Inf(-1)}
	for _, id := range ids {
		v := get(raw[id])
		n.min = math.Min(n.min, v)
		n.max = math.Max(n.max, v)
	}
	return n
}

func (n normalizer) norm(v float64) float64 {
	if n.max <= n.min {
		return clamp(v)
	}
	return clamp((v - n.min) / (n.max - n.min))
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
