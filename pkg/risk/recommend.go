package risk

import (
	"fmt"
	"strings"
)

// ChangeFlags are simple content signals derived from the changed paths.
type ChangeFlags struct {
	TouchesDatabaseSchema bool `json:"touchesDatabaseSchema"`
	TouchesPublicAPI      bool `json:"touchesPublicApi"`
	TouchesSecurity       bool `json:"touchesSecurity"`
}

// DeriveFlags inspects changed node ids for content-sensitive path
// keywords.
func DeriveFlags(changedIDs []string) ChangeFlags {
	var flags ChangeFlags
	for _, id := range changedIDs {
		lower := strings.ToLower(id)
		if containsAny(lower, "database", "schema", "migration") {
			flags.TouchesDatabaseSchema = true
		}
		if strings.Contains(lower, "api") {
			flags.TouchesPublicAPI = true
		}
		if containsAny(lower, "auth", "security", "crypto") {
			flags.TouchesSecurity = true
		}
	}
	return flags
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Recommend produces ordered textual guidance from a fixed rule table:
// band rules first, then blast-radius and focus rules, then content-flag
// rules. Deterministic; no external calls.
func Recommend(band Band, impactedCount, highRiskCount int, flags ChangeFlags) []string {
	var recs []string

	switch band {
	case BandCritical:
		recs = append(recs,
			"URGENT: extensive impact detected, use a staged rollout with feature flags",
			"Enable enhanced monitoring and alerting before deploying",
			"Prepare a rollback plan in case issues are detected")
	case BandHigh:
		recs = append(recs,
			"High impact detected, plan comprehensive testing",
			"Deploy with caution and monitor all affected endpoints")
	case BandMedium:
		recs = append(recs, "Standard testing procedures recommended")
	case BandLow:
		recs = append(recs, "Low structural risk, routine review is sufficient")
	}

	if impactedCount > 20 {
		recs = append(recs, fmt.Sprintf("Large blast radius (%d components), run thorough integration tests", impactedCount))
	}
	if highRiskCount > 0 {
		recs = append(recs, fmt.Sprintf("Focus testing on %d high-criticality components", highRiskCount))
	}

	if flags.TouchesDatabaseSchema {
		recs = append(recs, "Database schema changes detected, verify the migration strategy")
	}
	if flags.TouchesPublicAPI {
		recs = append(recs, "API changes detected, verify backward compatibility")
	}
	if flags.TouchesSecurity {
		recs = append(recs, "Security-related changes detected, perform a security review")
	}

	return recs
}
