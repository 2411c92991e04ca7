package transport

import "testing"

func TestClip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"kurz", 10, "kurz"},
		{"genau", 5, "genau"},
		{"zu lang", 5, "zu l…"},
		{"äöüäöü", 4, "äöü…"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := Clip(tt.in, tt.n); got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
