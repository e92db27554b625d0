package severity

import "strings"

// KeywordMatcher reports which emergency keywords appear in free text. It is
// an interface so the substring safety net can be swapped for smarter
// matching without touching the routing contract.
type KeywordMatcher interface {
	Matches(text string) []string
}

// emergencyKeywords is the fixed bilingual safety-net list. Any hit forces an
// emergency routing regardless of the numeric score.
var emergencyKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"unconscious",
	"severe bleeding",
	"stroke",
	"heart attack",
	"seizure",
	"poisoning",
	"severe burn",
	"choking",
	"coughing blood",
	"vomiting blood",
	"anaphylaxis",
	// Hindi equivalents.
	"छाती में दर्द",
	"सांस लेने में तकलीफ",
	"बेहोश",
	"खून बह रहा",
	"दिल का दौरा",
	"दौरा पड़ना",
	"ज़हर",
	"गंभीर जलन",
	"खून की उल्टी",
}

// SubstringMatcher is the default KeywordMatcher: case-insensitive substring
// match against a fixed keyword list.
type SubstringMatcher struct {
	keywords []string
}

// NewSubstringMatcher returns a matcher over the built-in bilingual emergency
// keyword list.
func NewSubstringMatcher() *SubstringMatcher {
	return &SubstringMatcher{keywords: emergencyKeywords}
}

// NewSubstringMatcherWithKeywords returns a matcher over a caller-supplied
// keyword list.
func NewSubstringMatcherWithKeywords(keywords []string) *SubstringMatcher {
	return &SubstringMatcher{keywords: keywords}
}

// Matches returns the keywords found in text, in list order.
func (m *SubstringMatcher) Matches(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range m.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

// MatchSymptoms joins a symptom list and runs the matcher over it.
func MatchSymptoms(m KeywordMatcher, symptoms []string) []string {
	if m == nil || len(symptoms) == 0 {
		return nil
	}
	return m.Matches(strings.Join(symptoms, " "))
}
