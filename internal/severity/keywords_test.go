package severity

import (
	"reflect"
	"testing"
)

func TestSubstringMatcher(t *testing.T) {
	t.Parallel()

	m := NewSubstringMatcher()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "no keywords",
			text: "mild headache since morning",
			want: nil,
		},
		{
			name: "single keyword",
			text: "sudden chest pain while walking",
			want: []string{"chest pain"},
		},
		{
			name: "case insensitive",
			text: "CHEST PAIN and sweating",
			want: []string{"chest pain"},
		},
		{
			name: "keyword inside longer phrase",
			text: "patient reports difficulty breathing at night",
			want: []string{"difficulty breathing"},
		},
		{
			name: "multiple keywords in list order",
			text: "unconscious after severe bleeding",
			want: []string{"unconscious", "severe bleeding"},
		},
		{
			name: "hindi keyword",
			text: "मरीज को छाती में दर्द है",
			want: []string{"छाती में दर्द"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := m.Matches(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchSymptoms(t *testing.T) {
	t.Parallel()

	m := NewSubstringMatcher()

	got := MatchSymptoms(m, []string{"fever", "vomiting blood"})
	want := []string{"vomiting blood"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchSymptoms = %v, want %v", got, want)
	}

	if got := MatchSymptoms(m, nil); got != nil {
		t.Errorf("MatchSymptoms(nil) = %v, want nil", got)
	}
	if got := MatchSymptoms(nil, []string{"chest pain"}); got != nil {
		t.Errorf("MatchSymptoms with nil matcher = %v, want nil", got)
	}
}

func TestMatchSymptoms_KeywordSplitAcrossEntries(t *testing.T) {
	t.Parallel()

	// Joining with a space means a keyword can straddle two entries. This is
	// deliberate: better a false emergency than a missed one.
	m := NewSubstringMatcher()
	got := MatchSymptoms(m, []string{"pressure in chest", "pain in left arm"})
	want := []string{"chest pain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchSymptoms = %v, want %v", got, want)
	}
}

func TestSubstringMatcherWithKeywords(t *testing.T) {
	t.Parallel()

	m := NewSubstringMatcherWithKeywords([]string{"snake bite"})
	if got := m.Matches("snake bite on leg"); !reflect.DeepEqual(got, []string{"snake bite"}) {
		t.Errorf("Matches = %v, want [snake bite]", got)
	}
	if got := m.Matches("chest pain"); got != nil {
		t.Errorf("Matches = %v, want nil for keyword outside custom list", got)
	}
}
