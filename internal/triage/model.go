package triage

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/routing"
)

// Request is a patient triage submission.
type Request struct {
	PatientID     string          `json:"patient_id"`
	Symptoms      []string        `json:"symptoms"`
	SeverityScore *int            `json:"severity_score,omitempty"`
	Patient       patient.Context `json:"patient_context"`
}

// Validate checks the request for fields the pipeline cannot proceed without.
func (r *Request) Validate() error {
	if r.PatientID == "" {
		return fmt.Errorf("%w: patient_id is required", routing.ErrInvalidInput)
	}
	if len(r.Symptoms) == 0 {
		return fmt.Errorf("%w: at least one symptom is required", routing.ErrInvalidInput)
	}
	if r.SeverityScore != nil && (*r.SeverityScore < 0 || *r.SeverityScore > 100) {
		return fmt.Errorf("%w: severity_score must be between 0 and 100", routing.ErrInvalidInput)
	}
	return nil
}

// patientSummary renders a one-line description of the patient for worker
// notifications. It never includes symptoms; those are added by the
// notification content builder.
func patientSummary(patientID string, pctx *patient.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient %s", patientID)
	if pctx == nil {
		return b.String()
	}
	if pctx.Age != nil {
		fmt.Fprintf(&b, ", age %d", *pctx.Age)
	}
	if pctx.Gender != "" {
		fmt.Fprintf(&b, ", %s", pctx.Gender)
	}
	if len(pctx.MedicalHistory) > 0 {
		fmt.Fprintf(&b, ", history: %s", strings.Join(pctx.MedicalHistory, ", "))
	}
	if pctx.IsPregnant != nil && *pctx.IsPregnant {
		b.WriteString(", pregnant")
	}
	return b.String()
}
