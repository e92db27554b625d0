package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/sehat/internal/routing"
)

const (
	// smsSymptomLimit caps symptoms listed in SMS-bound content. In-app
	// content carries the full list; this is a per-channel content policy.
	smsSymptomLimit = 3

	// smsLengthBudget is the hard cap for SMS body text.
	smsLengthBudget = 320
)

// content holds the channel-specific renderings of a notification.
type content struct {
	title      string
	message    string
	smsMessage string
}

// buildContent renders notification text from a routing decision and the
// patient summary. Tone scales with priority: critical cases get an
// alarm-style title and body prefix, high gets URGENT, medium and low get
// plain referral language.
func buildContent(d *routing.Decision, patientSummary string) content {
	var title, prefix string
	switch d.Priority {
	case routing.PriorityCritical:
		title = "CRITICAL CASE ALERT"
		prefix = "CRITICAL CASE: "
	case routing.PriorityHigh:
		title = "Urgent referral"
		prefix = "URGENT: "
	default:
		title = "Patient referral"
	}

	facilityLine := ""
	if d.Facility != nil {
		facilityLine = fmt.Sprintf(" Facility: %s.", d.Facility.Name)
	}

	// In-app body: untruncated symptoms plus the full audit reasoning.
	message := fmt.Sprintf("%s%s. Symptoms: %s. Attend %s. Timeframe: %s.%s %s",
		prefix,
		patientSummary,
		strings.Join(d.Symptoms, ", "),
		d.FacilityType,
		d.Timeframe,
		facilityLine,
		d.Reasoning,
	)

	sms := fmt.Sprintf("%s%s. Symptoms: %s. Attend %s. Timeframe: %s.%s",
		prefix,
		patientSummary,
		joinLimited(d.Symptoms, smsSymptomLimit),
		d.FacilityType,
		d.Timeframe,
		facilityLine,
	)
	if len(sms) > smsLengthBudget {
		// Back off to a rune boundary; Hindi text must not be cut mid-rune.
		cut := smsLengthBudget - 3
		for cut > 0 && !utf8.RuneStart(sms[cut]) {
			cut--
		}
		sms = sms[:cut] + "..."
	}

	return content{
		title:      title,
		message:    message,
		smsMessage: sms,
	}
}

func joinLimited(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + fmt.Sprintf(" (+%d more)", len(items)-limit)
}
