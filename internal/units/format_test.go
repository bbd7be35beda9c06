package units

import "testing"

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3725, "01:02:05"},
		{-5, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%f) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0m 0s"},
		{42.7, "0m 42s"},
		{125, "2m 5s"},
		{3600, "60m 0s"},
		{-1, "0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%f) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestMinutes(t *testing.T) {
	if got := Minutes(90); got != 1.5 {
		t.Errorf("Minutes(90) = %f, want 1.5", got)
	}
}
