package main

import (
	"strings"
	"testing"

	"github.com/ytpoint/point-monitor/pkg/points"
)

// TestParseConsoleLine tests console command splitting.
func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantName string
		wantArg  string
	}{
		{
			name:     "empty line",
			line:     "",
			wantName: "",
			wantArg:  "",
		},
		{
			name:     "whitespace only",
			line:     "   ",
			wantName: "",
			wantArg:  "",
		},
		{
			name:     "bare command",
			line:     "stop",
			wantName: "stop",
			wantArg:  "",
		},
		{
			name:     "command with argument",
			line:     "add 5",
			wantName: "add",
			wantArg:  "5",
		},
		{
			name:     "url argument",
			line:     "start https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantName: "start",
			wantArg:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "extra whitespace",
			line:     "  visitor   -3  ",
			wantName: "visitor",
			wantArg:  "-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, arg := parseConsoleLine(tt.line)
			if name != tt.wantName || arg != tt.wantArg {
				t.Errorf("parseConsoleLine(%q) = (%q, %q), want (%q, %q)",
					tt.line, name, arg, tt.wantName, tt.wantArg)
			}
		})
	}
}

// TestFormatPoints tests the console point breakdown rendering.
func TestFormatPoints(t *testing.T) {
	ps := points.PointState{
		Total:       2100,
		Superchat:   1000,
		Concurrent:  1000,
		Manual:      1,
	}

	got := formatPoints(ps)
	for _, want := range []string{"total: 2100", "superchat: 1000", "concurrent: 1000", "manual: 1", "visitor: 0"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatPoints() = %q, missing %q", got, want)
		}
	}
}
