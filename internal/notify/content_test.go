package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/linnemanlabs/sehat/internal/routing"
)

func TestBuildContent_CriticalTone(t *testing.T) {
	t.Parallel()

	d := testDecision()
	d.Priority = routing.PriorityCritical
	d.FacilityType = routing.FacilityEmergency
	d.Timeframe = "immediate"

	c := buildContent(d, "Patient pat-1, age 55")
	if c.title != "CRITICAL CASE ALERT" {
		t.Errorf("title = %q", c.title)
	}
	if !strings.HasPrefix(c.message, "CRITICAL CASE: ") {
		t.Errorf("message prefix missing: %q", c.message)
	}
	if !strings.HasPrefix(c.smsMessage, "CRITICAL CASE: ") {
		t.Errorf("sms prefix missing: %q", c.smsMessage)
	}
}

func TestBuildContent_HighTone(t *testing.T) {
	t.Parallel()

	d := testDecision()
	c := buildContent(d, "Patient pat-1")
	if c.title != "Urgent referral" {
		t.Errorf("title = %q", c.title)
	}
	if !strings.HasPrefix(c.message, "URGENT: ") {
		t.Errorf("message prefix missing: %q", c.message)
	}
}

func TestBuildContent_PlainToneForLowerPriorities(t *testing.T) {
	t.Parallel()

	for _, p := range []routing.Priority{routing.PriorityMedium, routing.PriorityLow} {
		d := testDecision()
		d.Priority = p
		c := buildContent(d, "Patient pat-1")
		if c.title != "Patient referral" {
			t.Errorf("priority %s: title = %q", p, c.title)
		}
		if strings.HasPrefix(c.message, "URGENT") || strings.HasPrefix(c.message, "CRITICAL") {
			t.Errorf("priority %s: unexpected alarm prefix in %q", p, c.message)
		}
	}
}

func TestBuildContent_InAppCarriesFullDetail(t *testing.T) {
	t.Parallel()

	d := testDecision()
	d.Symptoms = []string{"fever", "cough", "fatigue", "nausea", "dizziness"}
	d.Facility = &routing.FacilityRef{Name: "District CHC", Type: routing.FacilityCHC}

	c := buildContent(d, "Patient pat-1")
	for _, s := range d.Symptoms {
		if !strings.Contains(c.message, s) {
			t.Errorf("in-app message missing symptom %q", s)
		}
	}
	if !strings.Contains(c.message, d.Reasoning) {
		t.Error("in-app message missing reasoning")
	}
	if !strings.Contains(c.message, "District CHC") {
		t.Error("in-app message missing facility name")
	}
}

func TestBuildContent_SMSLimitsSymptoms(t *testing.T) {
	t.Parallel()

	d := testDecision()
	d.Symptoms = []string{"fever", "cough", "fatigue", "nausea", "dizziness"}

	c := buildContent(d, "Patient pat-1")
	if !strings.Contains(c.smsMessage, "fever, cough, fatigue (+2 more)") {
		t.Errorf("sms symptoms not limited: %q", c.smsMessage)
	}
	if strings.Contains(c.smsMessage, "nausea") {
		t.Errorf("sms carries symptoms beyond the limit: %q", c.smsMessage)
	}
	if strings.Contains(c.smsMessage, d.Reasoning) {
		t.Error("sms carries the audit reasoning")
	}
}

func TestBuildContent_SMSLengthBudget(t *testing.T) {
	t.Parallel()

	d := testDecision()
	c := buildContent(d, strings.Repeat("very long patient summary ", 40))
	if len(c.smsMessage) > smsLengthBudget {
		t.Errorf("sms length = %d, want <= %d", len(c.smsMessage), smsLengthBudget)
	}
	if !strings.HasSuffix(c.smsMessage, "...") {
		t.Errorf("truncated sms missing ellipsis: %q", c.smsMessage[len(c.smsMessage)-10:])
	}
}

func TestBuildContent_SMSTruncationKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	d := testDecision()
	d.Symptoms = []string{"छाती में दर्द", "सांस लेने में तकलीफ", "खून की उल्टी"}

	// Sweep summary lengths so the cut point lands inside the multibyte
	// Devanagari runs at least once.
	for pad := 200; pad < 260; pad++ {
		c := buildContent(d, strings.Repeat("x", pad))
		if len(c.smsMessage) > smsLengthBudget {
			t.Fatalf("pad %d: sms length = %d, want <= %d", pad, len(c.smsMessage), smsLengthBudget)
		}
		if !utf8.ValidString(c.smsMessage) {
			t.Fatalf("pad %d: truncated sms is not valid UTF-8: %q", pad, c.smsMessage)
		}
	}
}
