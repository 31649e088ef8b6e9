package search

import (
	"errors"
	"slices"
	"testing"
)

func TestMatchers_FruitExample(t *testing.T) {
	options := []fruit{{"Apple"}, {"Banana"}, {"Grape"}}

	for _, name := range MatcherNames() {
		t.Run(name, func(t *testing.T) {
			m, err := NewMatcher(name, false)
			if err != nil {
				t.Fatalf("NewMatcher(%q) error = %v", name, err)
			}

			ranked, err := Rank("ap", options, m)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}

			want := []string{"Apple", "Grape"}
			if got := labels(ranked); !slices.Equal(got, want) {
				t.Errorf("Rank(ap) = %v, want %v", got, want)
			}
		})
	}
}

func TestMatchers_EmptyQueryMatchesNothing(t *testing.T) {
	for _, name := range MatcherNames() {
		t.Run(name, func(t *testing.T) {
			m, err := NewMatcher(name, true)
			if err != nil {
				t.Fatalf("NewMatcher(%q) error = %v", name, err)
			}

			for _, q := range []string{"", "   "} {
				_, ok, err := m.Match(q, "Apple")
				if err != nil {
					t.Fatalf("Match(%q) error = %v", q, err)
				}
				if ok {
					t.Errorf("Match(%q, Apple) matched, want no match", q)
				}
			}
		})
	}
}

func TestMatchers_PrefixBeatsInterior(t *testing.T) {
	for _, name := range []string{MatcherFuzzy, MatcherFzf} {
		t.Run(name, func(t *testing.T) {
			m, err := NewMatcher(name, false)
			if err != nil {
				t.Fatalf("NewMatcher(%q) error = %v", name, err)
			}

			prefix, ok, err := m.Match("ap", "Apple")
			if err != nil || !ok {
				t.Fatalf("Match(ap, Apple) = %v, %v, %v", prefix, ok, err)
			}
			interior, ok, err := m.Match("ap", "Grape")
			if err != nil || !ok {
				t.Fatalf("Match(ap, Grape) = %v, %v, %v", interior, ok, err)
			}
			if prefix <= interior {
				t.Errorf("prefix score %v should exceed interior score %v", prefix, interior)
			}
		})
	}
}

func TestNewMatcher_Unknown(t *testing.T) {
	_, err := NewMatcher("soundex", false)
	if !errors.Is(err, ErrUnknownMatcher) {
		t.Errorf("NewMatcher(soundex) error = %v, want ErrUnknownMatcher", err)
	}
}

func TestNewMatcher_DefaultIsFuzzy(t *testing.T) {
	m, err := NewMatcher("", false)
	if err != nil {
		t.Fatalf("NewMatcher(\"\") error = %v", err)
	}
	if _, ok := m.(FuzzyMatcher); !ok {
		t.Errorf("NewMatcher(\"\") = %T, want FuzzyMatcher", m)
	}
}

func TestFolded(t *testing.T) {
	plain := FuzzyMatcher{}
	if _, ok, _ := plain.Match("pena", "Peña"); ok {
		t.Fatal("unfolded matcher should not match pena against Peña")
	}

	folded := Folded(plain)
	_, ok, err := folded.Match("pena", "Peña")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !ok {
		t.Error("folded matcher should match pena against Peña")
	}
}

func TestFoldDiacritics(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Peña", "Pena"},
		{"Muñoz-Garcés", "Munoz-Garces"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		got, err := foldDiacritics(tt.in)
		if err != nil {
			t.Fatalf("foldDiacritics(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("foldDiacritics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
