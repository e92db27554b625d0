package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/severity"
)

// facilityLookupTimeout bounds each call to the lookup collaborator so a
// slow store can never hang the pipeline.
const facilityLookupTimeout = 5 * time.Second

// tierRule maps a closed score range to its tier, priority, timeframe, and
// the fixed sentence used in reasoning text.
type tierRule struct {
	maxScore  int
	tier      FacilityType
	priority  Priority
	timeframe string
	sentence  string
}

// tierRules are evaluated in order; score ranges are closed on both ends
// with no gap: 40 is low, 41 is medium.
var tierRules = []tierRule{
	{40, FacilityASHA, PriorityLow, "as needed or within 48 hours",
		"ASHA worker referral: home-based care and monitoring, escalate if symptoms worsen."},
	{60, FacilityPHC, PriorityMedium, "within 24-48 hours",
		"Primary Health Centre referral: doctor consultation recommended."},
	{80, FacilityCHC, PriorityHigh, "within 4-24 hours",
		"Community Health Centre referral: specialist evaluation recommended."},
	{100, FacilityEmergency, PriorityCritical, "immediate",
		"Emergency referral: call 108 and reach the nearest emergency facility immediately."},
}

// riskWeight is a symptom-level risk factor with its score weight. This
// table is intentionally separate from the history-based adjustments in the
// severity package: different pipeline stage, different weight schema.
type riskWeight struct {
	condition string
	weight    int
}

var riskWeights = []riskWeight{
	{"heart disease", 15},
	{"cancer", 15},
	{"immunocompromised", 15},
	{"copd", 12},
	{"hiv", 12},
	{"tuberculosis", 12},
	{"diabetes", 10},
	{"asthma", 10},
	{"kidney disease", 10},
	{"liver disease", 10},
	{"hypertension", 8},
	{"anemia", 5},
}

const elderlyWeight = 5

// emergencyOverrideScore is the pinned score when emergency keywords appear
// in the symptom text, matching the assessor's short-circuit value.
const emergencyOverrideScore = 95

// fallbackChain lists the alternate tiers tried, in order, when the lookup
// signals the primary tier has no facilities at all.
var fallbackChain = map[FacilityType][]FacilityType{
	FacilityASHA:      {FacilityPHC, FacilityCHC},
	FacilityPHC:       {FacilityCHC, FacilityASHA},
	FacilityCHC:       {FacilityPHC, FacilityEmergency},
	FacilityEmergency: {FacilityCHC, FacilityPHC},
}

// guidanceText is returned, keyed by the original tier, when every tier in
// the fallback chain is unavailable. The decision still stands.
var guidanceText = map[FacilityType]string{
	FacilityASHA: "No health worker is registered in your area. Continue home care, " +
		"monitor symptoms, and visit the nearest health facility if they worsen.",
	FacilityPHC: "No health centre is registered in your area. Visit the nearest " +
		"available clinic or hospital within 24-48 hours.",
	FacilityCHC: "No community health centre is registered in your area. Travel to " +
		"the nearest district hospital within 4-24 hours.",
	FacilityEmergency: "No emergency facility is registered in your area. Call 108 " +
		"immediately and travel to the nearest hospital by any means available.",
}

// Engine maps a severity estimate and patient context to a facility-tier
// decision. Pure aside from the facility lookup collaborator; identical
// inputs produce byte-identical reasoning.
type Engine struct {
	locator FacilityLocator
	matcher severity.KeywordMatcher
	logger  log.Logger
}

// NewEngine creates a routing engine. A nil matcher falls back to the
// built-in substring matcher.
func NewEngine(locator FacilityLocator, matcher severity.KeywordMatcher, logger log.Logger) *Engine {
	if matcher == nil {
		matcher = severity.NewSubstringMatcher()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		locator: locator,
		matcher: matcher,
		logger:  logger,
	}
}

// Determine produces the routing decision for the given symptoms and
// severity score. Only structurally invalid input is fatal; every facility
// lookup failure degrades to fallback or guidance text.
func (e *Engine) Determine(ctx context.Context, symptoms []string, severityScore int, pctx *patient.Context, loc *patient.Location) (*Decision, error) {
	if len(symptoms) == 0 {
		return nil, fmt.Errorf("%w: empty symptom list", ErrInvalidInput)
	}
	if severityScore < 0 || severityScore > 100 {
		return nil, fmt.Errorf("%w: severity score %d outside [0,100]", ErrInvalidInput, severityScore)
	}
	if pctx == nil {
		return nil, fmt.Errorf("%w: missing patient context", ErrInvalidInput)
	}

	keywords := severity.MatchSymptoms(e.matcher, symptoms)
	override := len(keywords) > 0

	var (
		score   int
		applied []string
		rule    tierRule
	)
	if override {
		// Keyword hits pin the score at the emergency value; risk weights
		// never move it in either direction.
		score = emergencyOverrideScore
		rule = tierRules[len(tierRules)-1]
	} else {
		score, applied = e.applyRiskFactors(severityScore, pctx)
		rule = ruleForScore(score)
	}

	d := &Decision{
		SeverityScore:      score,
		SeverityLevel:      string(severity.LevelForScore(score)),
		FacilityType:       rule.tier,
		Priority:           rule.priority,
		Timeframe:          rule.timeframe,
		AppliedRiskFactors: applied,
		EmergencyOverride:  override,
		Symptoms:           symptoms,
	}
	if override {
		d.SeverityLevel = string(severity.LevelCritical)
		d.Priority = PriorityCritical
		d.Timeframe = "immediate"
	}

	e.resolveFacility(ctx, d, loc)

	d.Reasoning = buildReasoning(d, keywords, rule.sentence)
	return d, nil
}

// applyRiskFactors adds the engine's symptom-level condition weights and the
// elderly adjustment, capped at 100. Both this site and the severity
// package's history adjustment are additive across the pipeline.
func (e *Engine) applyRiskFactors(base int, pctx *patient.Context) (int, []string) {
	score := base
	var applied []string

	if pctx.Age != nil && *pctx.Age > 65 {
		score += elderlyWeight
		applied = append(applied, fmt.Sprintf("age over 65 (+%d)", elderlyWeight))
	}

	for _, rw := range riskWeights {
		for _, entry := range pctx.MedicalHistory {
			if strings.Contains(strings.ToLower(entry), rw.condition) {
				score += rw.weight
				applied = append(applied, fmt.Sprintf("%s (+%d)", rw.condition, rw.weight))
				break
			}
		}
	}

	if score > 100 {
		score = 100
	}
	return score, applied
}

// resolveFacility fills the concrete facility on the decision, walking the
// fallback chain when the primary tier is unavailable. Absence of a
// facility is never an error.
func (e *Engine) resolveFacility(ctx context.Context, d *Decision, loc *patient.Location) {
	if e.locator == nil || loc == nil {
		return
	}

	f, err := e.nearest(ctx, d.FacilityType, *loc)
	switch {
	case err == nil:
		d.Facility = f // may be nil: nothing nearby is a normal outcome
		return
	case !errors.Is(err, ErrTierUnavailable):
		e.logger.Error(ctx, err, "facility lookup failed, routing without facility",
			"facility_type", d.FacilityType,
		)
		return
	}

	// Primary tier has no facilities at all: walk the fallback chain.
	for _, alt := range fallbackChain[d.FacilityType] {
		f, err := e.nearest(ctx, alt, *loc)
		if err != nil || f == nil {
			continue
		}
		d.Facility = f
		d.IsFallback = true
		d.FallbackReason = fmt.Sprintf("no %s facility available, routed to %s", d.FacilityType, alt)
		e.logger.Info(ctx, "fallback facility routing",
			"from", d.FacilityType,
			"to", alt,
			"facility_id", f.ID,
		)
		return
	}

	d.Guidance = guidanceText[d.FacilityType]
}

func (e *Engine) nearest(ctx context.Context, ftype FacilityType, loc patient.Location) (*FacilityRef, error) {
	lctx, cancel := context.WithTimeout(ctx, facilityLookupTimeout)
	defer cancel()
	return e.locator.Nearest(lctx, ftype, loc)
}

func ruleForScore(score int) tierRule {
	for _, r := range tierRules {
		if score <= r.maxScore {
			return r
		}
	}
	return tierRules[len(tierRules)-1]
}

// buildReasoning assembles the audit reasoning text. Consumed by
// notification content and the audit log; must be reproducible for
// identical inputs.
func buildReasoning(d *Decision, keywords []string, tierSentence string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Severity %s (score %d).", d.SeverityLevel, d.SeverityScore)

	if d.EmergencyOverride {
		fmt.Fprintf(&b, " Emergency keywords reported: %s.", strings.Join(keywords, ", "))
	}

	if len(d.AppliedRiskFactors) > 0 {
		fmt.Fprintf(&b, " Risk factors applied: %s.", strings.Join(d.AppliedRiskFactors, ", "))
	}

	b.WriteString(" " + tierSentence)

	if d.IsFallback {
		fmt.Fprintf(&b, " Fallback routing: %s.", d.FallbackReason)
	}

	return b.String()
}
