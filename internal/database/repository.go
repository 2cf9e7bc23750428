package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"levelbot/internal/models"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetXP returns a member's XP, or 0 when the member has no row yet.
func (r *Repository) GetXP(ctx context.Context, guildID, userID string) (int64, error) {
	var xp int64
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT xp FROM member_xp WHERE guild_id = $1 AND user_id = $2",
		guildID, userID).Scan(&xp)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get xp: %w", err)
	}
	return xp, nil
}

// AddXP increments a member's XP, creating the row on first grant.
func (r *Repository) AddXP(ctx context.Context, guildID, userID string, delta int64) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO member_xp (guild_id, user_id, xp)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET xp = member_xp.xp + EXCLUDED.xp`,
		guildID, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to add xp: %w", err)
	}
	return nil
}

// GetTopXP returns a guild's members ordered by XP descending.
func (r *Repository) GetTopXP(ctx context.Context, guildID string, limit int) ([]models.MemberXP, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT user_id, xp FROM member_xp WHERE guild_id = $1 ORDER BY xp DESC LIMIT $2",
		guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top xp: %w", err)
	}
	defer rows.Close()

	var top []models.MemberXP
	for rows.Next() {
		entry := models.MemberXP{GuildID: guildID}
		if err := rows.Scan(&entry.UserID, &entry.XP); err != nil {
			return nil, fmt.Errorf("failed to scan xp row: %w", err)
		}
		top = append(top, entry)
	}
	return top, rows.Err()
}

// GetInviteUses returns the stored invite-use baseline for a guild.
func (r *Repository) GetInviteUses(ctx context.Context, guildID string) ([]models.InviteUse, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT code, uses, inviter_id FROM invite_uses WHERE guild_id = $1",
		guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite uses: %w", err)
	}
	defer rows.Close()

	var uses []models.InviteUse
	for rows.Next() {
		use := models.InviteUse{GuildID: guildID}
		if err := rows.Scan(&use.Code, &use.Uses, &use.InviterID); err != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", err)
		}
		uses = append(uses, use)
	}
	return uses, rows.Err()
}

// UpsertInviteUse stores an observed invite count. A fresh observation
// replaces the stored one (last-write-wins).
func (r *Repository) UpsertInviteUse(ctx context.Context, use models.InviteUse) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO invite_uses (guild_id, code, uses, inviter_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, code) DO UPDATE SET uses = EXCLUDED.uses, inviter_id = EXCLUDED.inviter_id`,
		use.GuildID, use.Code, use.Uses, use.InviterID)
	if err != nil {
		return fmt.Errorf("failed to upsert invite use: %w", err)
	}
	return nil
}
