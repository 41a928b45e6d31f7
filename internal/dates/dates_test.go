package dates

import (
	"testing"
	"time"
)

func TestIsValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2025-02-01", true},
		{"2025-02-30", false},
		{"2025-2-1", false},
		{"today", false},
	}
	for _, tt := range tests {
		if got := IsValidDate(tt.in); got != tt.want {
			t.Errorf("IsValidDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 2, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		arg     string
		want    time.Time
		wantErr bool
	}{
		{"today", "today", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), false},
		{"yesterday", " Yesterday ", time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), false},
		{"hours", "6h", time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC), false},
		{"minutes", "90m", time.Date(2025, 2, 10, 14, 0, 0, 0, time.UTC), false},
		{"days", "3d", time.Date(2025, 2, 7, 15, 30, 0, 0, time.UTC), false},
		{"date", "2025-01-31", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), false},
		{"local datetime", "2025-01-31T08:15", time.Date(2025, 1, 31, 8, 15, 0, 0, time.UTC), false},
		{"rfc3339", "2025-01-31T08:15:00Z", time.Date(2025, 1, 31, 8, 15, 0, 0, time.UTC), false},
		{"negative", "-2h", time.Time{}, true},
		{"garbage", "last week", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSince(tt.arg, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %v, want %v", tt.arg, got, tt.want)
			}
		})
	}
}
