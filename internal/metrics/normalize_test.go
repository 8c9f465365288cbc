package metrics

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"0", 0},
		{"423", 423},
		{"1,234", 1234},
		{"12,345", 12345},
		{"1.2K", 1200},
		{"1.5K", 1500},
		{"5.7k", 5700},
		{"2M", 2000000},
		{"1.05M", 1050000},
		{"3.333K", 3333},
		{" 42 ", 42},
		{"N/A", 0},
		{"likes", 0},
		{"-5", 0},
		{"K", 0},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
