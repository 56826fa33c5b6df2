package invalidation

import (
	"errors"
	"testing"
)

func TestNewKeyMatcher(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		key     string
		want    bool
	}{
		{
			name:    "Exact / full match",
			pattern: "user_data:42",
			key:     "user_data:42",
			want:    true,
		},
		{
			name:    "Exact / different key",
			pattern: "user_data:42",
			key:     "user_data:43",
			want:    false,
		},
		{
			name:    "Prefix / matching key",
			pattern: "user_data:*",
			key:     "user_data:42:bets",
			want:    true,
		},
		{
			name:    "Prefix / non-matching key",
			pattern: "user_data:*",
			key:     "game_data:42",
			want:    false,
		},
		{
			name:    "Prefix / bare star matches everything",
			pattern: "*",
			key:     "anything",
			want:    true,
		},
		{
			name:    "Suffix / matching key",
			pattern: "*:summary",
			key:     "stats:today:summary",
			want:    true,
		},
		{
			name:    "Suffix / non-matching key",
			pattern: "*:summary",
			key:     "stats:today:details",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewKeyMatcher(tt.pattern)
			if err != nil {
				t.Fatalf("NewKeyMatcher(%q) failed: %v", tt.pattern, err)
			}
			if got := m.Match(tt.key); got != tt.want {
				t.Errorf("Match(%q) against %q = %v, want %v", tt.key, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestNewKeyMatcherEmptyPattern(t *testing.T) {
	_, err := NewKeyMatcher("")
	if !errors.Is(err, ErrEmptyPattern) {
		t.Errorf("expected ErrEmptyPattern, got %v", err)
	}
}

func TestMatcherPattern(t *testing.T) {
	for _, pattern := range []string{"user_data:42", "user_data:*", "*:summary"} {
		m, err := NewKeyMatcher(pattern)
		if err != nil {
			t.Fatalf("NewKeyMatcher(%q) failed: %v", pattern, err)
		}
		if got := m.Pattern(); got != pattern {
			t.Errorf("Pattern() = %q, want %q", got, pattern)
		}
	}
}

func TestDerivePrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"user_data:*", "user_data"},
		{"bet_data:123", "bet_data"},
		{"stats:today:summary", "stats"},
		{"*:summary", ""},
		{"plainkey", "plainkey"},
		{"plainkey*", "plainkey"},
	}

	for _, tt := range tests {
		if got := DerivePrefix(tt.pattern); got != tt.want {
			t.Errorf("DerivePrefix(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
