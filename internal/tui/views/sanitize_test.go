package views

import "testing"

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello there", "hello there"},
		{"skin tone stripped", "\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"zwj sequence degrades", "\U0001F468‍\U0001F4BB", "\U0001F468\U0001F4BB"},
		{"variation selector stripped", "❤️", "❤"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
