package models

import "testing"

func TestIsPrimaryOrderNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"MO000001", true},
		{"MO1000000", true},
		{"MO000001-R1", false},
		{"MO", false},
		{"MOVE-1", false},
		{"WO-LEGACY-7", false},
		{"mo000001", false},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			if got := IsPrimaryOrderNumber(tt.number); got != tt.want {
				t.Errorf("IsPrimaryOrderNumber(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}
