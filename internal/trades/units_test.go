package trades

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToCurrency(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"one ether", "1000000000000000000", 18, "1", false},
		{"fractional ether", "250000000000000000", 18, "0.25", false},
		{"one wei", "1", 18, "0.000000000000000001", false},
		{"usdc decimals", "1500000", 6, "1.5", false},
		{"zero", "0", 18, "0", false},
		{"beyond float64 precision", "123456789012345678901234567", 18, "123456789.012345678901234567", false},
		{"whitespace", " 2000000000000000000 ", 18, "2", false},
		{"empty", "", 18, "", true},
		{"garbage", "abc", 18, "", true},
		{"not an integer", "1.5", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCurrency(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseEventDate(t *testing.T) {
	want := time.Date(2021, 9, 1, 12, 30, 15, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2021-09-01T12:30:15", want},
		{"2021-09-01T12:30:15.000000", want},
		{"2021-09-01T12:30:15.250000", want.Add(250 * time.Millisecond)},
		{"2021-09-01T12:30:15Z", want},
		{"2021-09-01T14:30:15+02:00", want},
		{"2021-09-01 12:30:15", want},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEventDate(tt.input)
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "ParseEventDate(%q) = %v, want %v", tt.input, got, tt.want)
			require.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseEventDate("yesterday")
	require.Error(t, err)
}
