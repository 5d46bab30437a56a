package transcribe

import "testing"

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.73, 0.73},
		{1, 1},
		{1.8, 1},
	}
	for _, tc := range cases {
		if got := clamp01(tc.in); got != tc.want {
			t.Errorf("clamp01(%g) = %g, want %g", tc.in, got, tc.want)
		}
	}
}

func TestFormatThreshold(t *testing.T) {
	if got := formatThreshold(0.5); got != "0.5" {
		t.Errorf("formatThreshold(0.5) = %q", got)
	}
	if got := formatThreshold(0.05); got != "0.05" {
		t.Errorf("formatThreshold(0.05) = %q", got)
	}
}
