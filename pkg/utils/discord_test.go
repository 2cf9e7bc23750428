package utils

import "testing"

func TestFormatLeaderboardEntry(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{1, "🥇 <@1> — level 3 (1600 XP)"},
		{2, "🥈 <@1> — level 3 (1600 XP)"},
		{3, "🥉 <@1> — level 3 (1600 XP)"},
		{4, "4. <@1> — level 3 (1600 XP)"},
	}

	for _, tt := range tests {
		got := FormatLeaderboardEntry(tt.rank, FormatUserMention("1"), 3, 1600)
		if got != tt.want {
			t.Errorf("FormatLeaderboardEntry(%d) = %q, want %q", tt.rank, got, tt.want)
		}
	}
}

func TestFormatProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{0, "▱▱▱▱▱▱▱▱▱▱"},
		{35, "▰▰▰▱▱▱▱▱▱▱"},
		{100, "▰▰▰▰▰▰▰▰▰▰"},
		{-5, "▱▱▱▱▱▱▱▱▱▱"},
		{150, "▰▰▰▰▰▰▰▰▰▰"},
	}

	for _, tt := range tests {
		if got := FormatProgressBar(tt.percent); got != tt.want {
			t.Errorf("FormatProgressBar(%d) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0:00:00"},
		{61, "0:01:01"},
		{3661, "1:01:01"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString(short) = %q", got)
	}
	if got := TruncateString("this is a long title", 10); got != "this is..." {
		t.Errorf("TruncateString = %q, want %q", got, "this is...")
	}
}
