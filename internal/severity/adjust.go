package severity

import (
	"strings"

	"github.com/linnemanlabs/sehat/internal/patient"
)

// highRiskConditions are chronic conditions that bump the history-based
// adjustment. Matched case-insensitively as substrings of history entries.
var highRiskConditions = []string{
	"diabetes",
	"hypertension",
	"heart disease",
	"asthma",
	"copd",
	"kidney disease",
	"liver disease",
	"cancer",
	"immunocompromised",
	"hiv",
	"tuberculosis",
}

const (
	ageBandAdjustment     = 5  // under 5 or over 65
	advancedAgeAdjustment = 5  // over 75, on top of the band adjustment
	chronicAdjustment     = 10 // any high-risk condition, applied once
	pregnancyAdjustment   = 10
)

// AdjustForHistory applies the deterministic history-based adjustments to a
// base score and returns the adjusted score clamped to [0,100] together with
// the names of the factors that fired.
//
// This table is intentionally separate from the routing engine's symptom-level
// weight table: the two run at different pipeline stages with different
// schemas, and both are additive across the pipeline.
func AdjustForHistory(base int, pctx *patient.Context) (int, []string) {
	score := base
	var factors []string

	if pctx == nil {
		return clampScore(score), nil
	}

	if pctx.Age != nil {
		age := *pctx.Age
		if age < 5 || age > 65 {
			score += ageBandAdjustment
			factors = append(factors, "age-risk-band")
		}
		if age > 75 {
			score += advancedAgeAdjustment
			factors = append(factors, "advanced-age")
		}
	}

	if cond := matchChronicCondition(pctx.MedicalHistory); cond != "" {
		score += chronicAdjustment
		factors = append(factors, cond)
	}

	if pctx.IsPregnant != nil && *pctx.IsPregnant {
		score += pregnancyAdjustment
		factors = append(factors, "pregnancy")
	}

	return clampScore(score), factors
}

// matchChronicCondition returns the first high-risk condition found in the
// history entries, or "" when none match. The adjustment applies once no
// matter how many conditions are present.
func matchChronicCondition(history []string) string {
	for _, entry := range history {
		lower := strings.ToLower(entry)
		for _, cond := range highRiskConditions {
			if strings.Contains(lower, cond) {
				return cond
			}
		}
	}
	return ""
}
