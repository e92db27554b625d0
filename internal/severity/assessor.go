package severity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sehat/internal/patient"
)

// emergencyScore is the forced score when the keyword override fires.
const emergencyScore = 95

// defaultModelTimeout bounds external model calls so a hung upstream can
// never stall the triage pipeline.
const defaultModelTimeout = 30 * time.Second

// HomeCareGuidance is the generic fallback message attached to upstream
// failures. The assessor never guesses a severity on the model's behalf.
const HomeCareGuidance = "We could not assess your symptoms right now. " +
	"Please rest, stay hydrated, and contact your nearest health worker. " +
	"If symptoms worsen or you notice chest pain, difficulty breathing, or " +
	"heavy bleeding, call 108 immediately."

// ModelProvider is the external severity model. May fail or time out.
type ModelProvider interface {
	Assess(ctx context.Context, symptoms []string, pctx *patient.Context) (*ModelResult, error)
}

// UpstreamError wraps a severity model failure. Recoverable: callers may
// retry; Guidance is safe to surface to the patient in the meantime.
type UpstreamError struct {
	Err      error
	Guidance string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("severity model unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Assessor produces severity assessments: emergency keyword short-circuit
// first, then the external model (or a caller-provided score), then the
// deterministic history adjustments.
type Assessor struct {
	provider ModelProvider
	matcher  KeywordMatcher
	timeout  time.Duration
	logger   log.Logger
}

// NewAssessor creates an Assessor. A nil matcher falls back to the built-in
// substring matcher; a zero timeout uses the default.
func NewAssessor(provider ModelProvider, matcher KeywordMatcher, timeout time.Duration, logger log.Logger) *Assessor {
	if matcher == nil {
		matcher = NewSubstringMatcher()
	}
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Assessor{
		provider: provider,
		matcher:  matcher,
		timeout:  timeout,
		logger:   logger,
	}
}

// Assess scores the given symptoms. baseScore, when non-nil, is a
// caller-supplied 0-100 estimate that replaces the model call. The emergency
// keyword override bypasses both and is the only guaranteed path when the
// model is down.
func (a *Assessor) Assess(ctx context.Context, symptoms []string, pctx *patient.Context, baseScore *int) (*Assessment, error) {
	if keywords := MatchSymptoms(a.matcher, symptoms); len(keywords) > 0 {
		a.logger.Info(ctx, "emergency keyword override",
			"keywords", keywords,
		)
		return &Assessment{
			Score:             emergencyScore,
			Level:             LevelCritical,
			EmergencyKeywords: keywords,
			Reasoning:         "Emergency keywords detected: " + strings.Join(keywords, ", "),
			ShortCircuit:      true,
		}, nil
	}

	base := DefaultBaseScore
	var riskFactors []string
	var reasoning string

	switch {
	case baseScore != nil:
		base = clampScore(*baseScore)
		reasoning = "Caller-supplied severity estimate"
	case a.provider != nil:
		mctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		res, err := a.provider.Assess(mctx, symptoms, pctx)
		if err != nil {
			a.logger.Error(ctx, err, "severity model call failed")
			return nil, &UpstreamError{Err: err, Guidance: HomeCareGuidance}
		}
		base = clampScore(res.Score)
		riskFactors = res.RiskFactors
		reasoning = res.Reasoning
	default:
		reasoning = "No severity model configured; default base score"
	}

	adjusted, factors := AdjustForHistory(base, pctx)
	riskFactors = append(riskFactors, factors...)

	return &Assessment{
		Score:       adjusted,
		Level:       LevelForScore(adjusted),
		RiskFactors: riskFactors,
		Reasoning:   reasoning,
	}, nil
}
