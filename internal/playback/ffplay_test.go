package playback

import (
	"reflect"
	"testing"
)

func TestFFPlayArgs(t *testing.T) {
	tests := []struct {
		name         string
		offsetMillis int64
		rate         float64
		want         []string
	}{
		{
			name: "defaults",
			rate: 1.0,
			want: []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit", "u"},
		},
		{
			name:         "offset",
			offsetMillis: 90500,
			rate:         1.0,
			want:         []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit", "-ss", "90.500", "u"},
		},
		{
			name: "rate",
			rate: 1.5,
			want: []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit", "-af", "atempo=1.50", "u"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ffplayArgs("u", tc.offsetMillis, tc.rate)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ffplayArgs() = %v, want %v", got, tc.want)
			}
		})
	}
}
