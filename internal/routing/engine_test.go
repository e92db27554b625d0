package routing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sehat/internal/patient"
)

func intPtr(v int) *int { return &v }

// mockLocator implements FacilityLocator for testing.
type mockLocator struct {
	facilities map[FacilityType]*FacilityRef
	unavail    map[FacilityType]bool
	err        error
	calls      []FacilityType
}

func (m *mockLocator) Nearest(_ context.Context, ftype FacilityType, _ patient.Location) (*FacilityRef, error) {
	m.calls = append(m.calls, ftype)
	if m.err != nil {
		return nil, m.err
	}
	if m.unavail[ftype] {
		return nil, ErrTierUnavailable
	}
	return m.facilities[ftype], nil
}

func TestDetermine_TierBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score     int
		wantTier  FacilityType
		wantPrio  Priority
		wantLevel string
	}{
		{0, FacilityASHA, PriorityLow, "low"},
		{40, FacilityASHA, PriorityLow, "low"},
		{41, FacilityPHC, PriorityMedium, "medium"},
		{60, FacilityPHC, PriorityMedium, "medium"},
		{61, FacilityCHC, PriorityHigh, "high"},
		{80, FacilityCHC, PriorityHigh, "high"},
		{81, FacilityEmergency, PriorityCritical, "critical"},
		{100, FacilityEmergency, PriorityCritical, "critical"},
	}

	e := NewEngine(nil, nil, log.Nop())
	for _, tt := range tests {
		d, err := e.Determine(context.Background(), []string{"mild headache"}, tt.score, &patient.Context{}, nil)
		if err != nil {
			t.Fatalf("Determine(%d): %v", tt.score, err)
		}
		if d.FacilityType != tt.wantTier {
			t.Errorf("score %d: tier = %s, want %s", tt.score, d.FacilityType, tt.wantTier)
		}
		if d.Priority != tt.wantPrio {
			t.Errorf("score %d: priority = %s, want %s", tt.score, d.Priority, tt.wantPrio)
		}
		if d.SeverityLevel != tt.wantLevel {
			t.Errorf("score %d: level = %s, want %s", tt.score, d.SeverityLevel, tt.wantLevel)
		}
	}
}

func TestDetermine_InvalidInput(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())

	tests := []struct {
		name     string
		symptoms []string
		score    int
		pctx     *patient.Context
	}{
		{"empty symptoms", nil, 50, &patient.Context{}},
		{"score below range", []string{"fever"}, -1, &patient.Context{}},
		{"score above range", []string{"fever"}, 101, &patient.Context{}},
		{"nil patient context", []string{"fever"}, 50, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := e.Determine(context.Background(), tt.symptoms, tt.score, tt.pctx, nil)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestDetermine_EmergencyOverrideBeatsLowScore(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"chest pain"}, 10, &patient.Context{}, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.FacilityType != FacilityEmergency {
		t.Errorf("tier = %s, want %s", d.FacilityType, FacilityEmergency)
	}
	if d.SeverityScore != 95 {
		t.Errorf("score = %d, want 95", d.SeverityScore)
	}
	if d.Priority != PriorityCritical {
		t.Errorf("priority = %s, want critical", d.Priority)
	}
	if d.Timeframe != "immediate" {
		t.Errorf("timeframe = %q, want immediate", d.Timeframe)
	}
	if !d.EmergencyOverride {
		t.Error("expected emergency override flag")
	}
}

func TestDetermine_OverridePinsScoreDespiteRiskFactors(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())

	pctx := &patient.Context{Age: intPtr(55), MedicalHistory: []string{"diabetes"}}
	d, err := e.Determine(context.Background(), []string{"chest pain"}, 95, pctx, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.SeverityScore != 95 {
		t.Errorf("score = %d, want 95", d.SeverityScore)
	}
	if len(d.AppliedRiskFactors) != 0 {
		t.Errorf("risk factors = %v, want none under override", d.AppliedRiskFactors)
	}
}

func TestDetermine_RiskWeights(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())

	tests := []struct {
		name        string
		score       int
		pctx        *patient.Context
		wantScore   int
		wantFactors []string
	}{
		{
			name:        "diabetes adds ten",
			score:       55,
			pctx:        &patient.Context{MedicalHistory: []string{"diabetes"}},
			wantScore:   65,
			wantFactors: []string{"diabetes (+10)"},
		},
		{
			name:        "heart disease adds fifteen",
			score:       50,
			pctx:        &patient.Context{MedicalHistory: []string{"Heart Disease"}},
			wantScore:   65,
			wantFactors: []string{"heart disease (+15)"},
		},
		{
			name:        "elderly adds five",
			score:       55,
			pctx:        &patient.Context{Age: intPtr(70)},
			wantScore:   60,
			wantFactors: []string{"age over 65 (+5)"},
		},
		{
			name:  "elderly with two conditions stacks",
			score: 55,
			pctx: &patient.Context{
				Age:            intPtr(70),
				MedicalHistory: []string{"diabetes", "hypertension"},
			},
			wantScore:   78,
			wantFactors: []string{"age over 65 (+5)", "diabetes (+10)", "hypertension (+8)"},
		},
		{
			name:      "capped at one hundred",
			score:     95,
			pctx:      &patient.Context{Age: intPtr(80), MedicalHistory: []string{"cancer"}},
			wantScore: 100,
		},
		{
			name:      "age sixty five exactly is not elderly",
			score:     55,
			pctx:      &patient.Context{Age: intPtr(65)},
			wantScore: 55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := e.Determine(context.Background(), []string{"fever"}, tt.score, tt.pctx, nil)
			if err != nil {
				t.Fatalf("Determine: %v", err)
			}
			if d.SeverityScore != tt.wantScore {
				t.Errorf("score = %d, want %d", d.SeverityScore, tt.wantScore)
			}
			if tt.wantFactors != nil {
				if len(d.AppliedRiskFactors) != len(tt.wantFactors) {
					t.Fatalf("factors = %v, want %v", d.AppliedRiskFactors, tt.wantFactors)
				}
				for i, f := range tt.wantFactors {
					if d.AppliedRiskFactors[i] != f {
						t.Errorf("factor[%d] = %q, want %q", i, d.AppliedRiskFactors[i], f)
					}
				}
			}
		})
	}
}

func TestDetermine_FacilityResolved(t *testing.T) {
	t.Parallel()

	loc := &mockLocator{facilities: map[FacilityType]*FacilityRef{
		FacilityPHC: {ID: "phc-1", Name: "Rampur PHC", Type: FacilityPHC, DistanceMeters: 3200},
	}}
	e := NewEngine(loc, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"fever"}, 50, &patient.Context{}, &patient.Location{Lat: 26.8, Lng: 80.9})
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.Facility == nil || d.Facility.ID != "phc-1" {
		t.Fatalf("facility = %+v, want phc-1", d.Facility)
	}
	if d.IsFallback {
		t.Error("unexpected fallback")
	}
}

func TestDetermine_FallbackChain(t *testing.T) {
	t.Parallel()

	// CHC has no facilities at all; PHC does. The decision keeps the CHC
	// recommendation but routes to the PHC facility.
	loc := &mockLocator{
		unavail: map[FacilityType]bool{FacilityCHC: true},
		facilities: map[FacilityType]*FacilityRef{
			FacilityPHC: {ID: "phc-2", Name: "Sitapur PHC", Type: FacilityPHC},
		},
	}
	e := NewEngine(loc, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"high fever"}, 70, &patient.Context{}, &patient.Location{Lat: 26.8, Lng: 80.9})
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.FacilityType != FacilityCHC {
		t.Errorf("tier = %s, want CHC", d.FacilityType)
	}
	if d.Facility == nil || d.Facility.ID != "phc-2" {
		t.Fatalf("facility = %+v, want phc-2", d.Facility)
	}
	if !d.IsFallback {
		t.Error("expected fallback flag")
	}
	if d.FallbackReason != "no CHC facility available, routed to PHC" {
		t.Errorf("fallback reason = %q", d.FallbackReason)
	}
	if !strings.Contains(d.Reasoning, "Fallback routing: no CHC facility available, routed to PHC.") {
		t.Errorf("reasoning = %q", d.Reasoning)
	}
}

func TestDetermine_AllTiersUnavailableGetsGuidance(t *testing.T) {
	t.Parallel()

	loc := &mockLocator{unavail: map[FacilityType]bool{
		FacilityASHA: true, FacilityPHC: true, FacilityCHC: true, FacilityEmergency: true,
	}}
	e := NewEngine(loc, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"high fever"}, 70, &patient.Context{}, &patient.Location{Lat: 26.8, Lng: 80.9})
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.Facility != nil {
		t.Errorf("facility = %+v, want nil", d.Facility)
	}
	if d.IsFallback {
		t.Error("unexpected fallback flag without a facility")
	}
	if d.Guidance == "" {
		t.Error("expected guidance text when no tier is available")
	}
}

func TestDetermine_LocatorErrorDegrades(t *testing.T) {
	t.Parallel()

	loc := &mockLocator{err: errors.New("store down")}
	e := NewEngine(loc, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"fever"}, 50, &patient.Context{}, &patient.Location{Lat: 26.8, Lng: 80.9})
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.Facility != nil {
		t.Errorf("facility = %+v, want nil on lookup failure", d.Facility)
	}
	if d.FacilityType != FacilityPHC {
		t.Errorf("tier = %s, want PHC", d.FacilityType)
	}
}

func TestDetermine_NoLocationSkipsLookup(t *testing.T) {
	t.Parallel()

	loc := &mockLocator{}
	e := NewEngine(loc, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"fever"}, 50, &patient.Context{}, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if len(loc.calls) != 0 {
		t.Errorf("locator called %d times, want 0", len(loc.calls))
	}
	if d.Facility != nil {
		t.Errorf("facility = %+v, want nil", d.Facility)
	}
}

func TestDetermine_ReasoningIsReproducible(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())
	pctx := &patient.Context{Age: intPtr(70), MedicalHistory: []string{"diabetes"}}

	first, err := e.Determine(context.Background(), []string{"high fever", "weakness"}, 55, pctx, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	second, err := e.Determine(context.Background(), []string{"high fever", "weakness"}, 55, pctx, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if first.Reasoning != second.Reasoning {
		t.Errorf("reasoning differs between runs:\n%q\n%q", first.Reasoning, second.Reasoning)
	}

	want := "Severity high (score 70). Risk factors applied: age over 65 (+5), diabetes (+10). " +
		"Community Health Centre referral: specialist evaluation recommended."
	if first.Reasoning != want {
		t.Errorf("reasoning = %q, want %q", first.Reasoning, want)
	}
}

func TestDetermine_LowScoreTimeframe(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, log.Nop())

	d, err := e.Determine(context.Background(), []string{"mild headache"}, 30, &patient.Context{}, nil)
	if err != nil {
		t.Fatalf("Determine: %v", err)
	}
	if d.FacilityType != FacilityASHA {
		t.Errorf("tier = %s, want ASHA", d.FacilityType)
	}
	if d.SeverityLevel != "low" {
		t.Errorf("level = %s, want low", d.SeverityLevel)
	}
	if !strings.Contains(d.Timeframe, "48") {
		t.Errorf("timeframe = %q, want mention of 48 hours", d.Timeframe)
	}
}
