package models

// MemberXP represents a member's experience points in a guild
type MemberXP struct {
	GuildID string
	UserID  string
	XP      int64
}

// InviteUse represents the last observed use count of a guild invite code.
// Rows double as the comparison baseline for invite attribution.
type InviteUse struct {
	GuildID   string
	Code      string
	Uses      int
	InviterID string
}
