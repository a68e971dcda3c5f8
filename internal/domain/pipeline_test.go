package domain

import "testing"

// TestIsISOTime tests the event timestamp shape check.
func TestIsISOTime(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"2024-01-01T10:00:00Z", true},
		{"2024-01-01 10:00:00", true},
		{"2024-01-01T10:00:00.123+02:00", true},
		{"2024-01-01", false},
		{"01/02/2024 10:00", false},
		{"", false},
		{"24-01-01T10:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsISOTime(tt.value); got != tt.want {
				t.Errorf("IsISOTime(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

// TestParseTime tests parsing of platform timestamp variants.
func TestParseTime(t *testing.T) {
	tests := []string{
		"2024-01-01T10:00:00Z",
		"2024-01-01T10:00:00.123Z",
		"2024-01-01T12:00:00+02:00",
		"2024-01-01T10:00:00",
		"2024-01-01 10:00:00",
	}

	for _, value := range tests {
		t.Run(value, func(t *testing.T) {
			got, err := ParseTime(value)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.UTC().Hour() != 10 {
				t.Errorf("expected 10:00 UTC, got %v", got.UTC())
			}
		})
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

// TestLatestTime tests picking the maximum timestamp.
func TestLatestTime(t *testing.T) {
	// Arrange
	values := []string{"2024-01-01T10:00:00Z", "", "garbage", "2024-01-03T09:00:00Z", "2024-01-02T23:00:00Z"}

	// Act
	got := LatestTime(values...)

	// Assert
	if got != "2024-01-03T09:00:00Z" {
		t.Errorf("expected latest 2024-01-03T09:00:00Z, got %q", got)
	}

	if LatestTime() != "" {
		t.Error("expected empty result without values")
	}
}

// TestStatusIsStarted tests which job states count as started.
func TestStatusIsStarted(t *testing.T) {
	if !StatusSuccess.IsStarted() || !StatusFailed.IsStarted() || !StatusRunning.IsStarted() {
		t.Error("expected running, success and failed to count as started")
	}
	if StatusPending.IsStarted() || StatusSkipped.IsStarted() {
		t.Error("expected pending and skipped not to count as started")
	}
}
