package models

import (
	"testing"
	"time"
)

func TestComputeNextServiceDate(t *testing.T) {
	tests := []struct {
		name        string
		serviceDate time.Time
		months      int
		expected    time.Time
	}{
		{
			name:        "six months",
			serviceDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			months:      6,
			expected:    time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "crosses year",
			serviceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			months:      3,
			expected:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "zero falls back to default",
			serviceDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			months:      0,
			expected:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNextServiceDate(tt.serviceDate, tt.months)
			if !got.Equal(tt.expected) {
				t.Errorf("ComputeNextServiceDate() = %v, want %v", got, tt.expected)
			}
		})
	}
}
