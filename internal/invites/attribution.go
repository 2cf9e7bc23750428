// Package invites attributes member joins to the invite code that was
// used, by diffing stored use counts against freshly fetched ones.
package invites

import (
	"context"

	"github.com/rs/zerolog"

	"levelbot/internal/metrics"
	"levelbot/internal/models"
)

// Store persists the invite-use baseline for a guild.
type Store interface {
	GetInviteUses(ctx context.Context, guildID string) ([]models.InviteUse, error)
	// UpsertInviteUse stores the observed count with last-write-wins
	// semantics: a fresh observation replaces the stored one.
	UpsertInviteUse(ctx context.Context, use models.InviteUse) error
}

// Fetcher reads current invite state from the platform.
type Fetcher interface {
	// FetchInvites returns the guild's invites in platform order.
	FetchInvites(guildID string) ([]models.InviteUse, error)
	// FetchVanity returns the guild's vanity invite, or nil when the guild
	// has none.
	FetchVanity(guildID string) (*models.InviteUse, error)
}

// Notifier posts join notifications.
type Notifier interface {
	NotifyInviteUsed(guildID, userID string, invite models.InviteUse)
	NotifyUnknownInvite(guildID, userID string)
}

// Attributor performs the one-shot join attribution.
type Attributor struct {
	store    Store
	fetcher  Fetcher
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewAttributor creates an invite attributor.
func NewAttributor(store Store, fetcher Fetcher, notifier Notifier, m *metrics.Metrics, logger *zerolog.Logger) *Attributor {
	return &Attributor{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "invites").Logger(),
	}
}

// SyncGuild refreshes the stored baseline from the platform. Called when a
// guild becomes available, so later joins have pre-join counts to diff
// against.
func (a *Attributor) SyncGuild(ctx context.Context, guildID string) {
	fetched, err := a.fetcher.FetchInvites(guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to fetch invites for baseline sync")
		return
	}
	for _, use := range fetched {
		if err := a.store.UpsertInviteUse(ctx, use); err != nil {
			a.logger.Error().Err(err).
				Str("guild_id", guildID).
				Str("code", use.Code).
				Msg("Failed to store invite baseline")
		}
	}
	if vanity, err := a.fetcher.FetchVanity(guildID); err == nil && vanity != nil {
		if err := a.store.UpsertInviteUse(ctx, *vanity); err != nil {
			a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to store vanity baseline")
		}
	}
	a.logger.Debug().Str("guild_id", guildID).Int("invites", len(fetched)).Msg("Invite baseline synced")
}

// MemberJoined attributes a join by diffing the stored counts against a
// fresh fetch. The first code in fetch order whose count changed wins; if
// none changed the vanity counter is compared the same way; anything else,
// including a failed fetch, degrades to an unknown-invite notification.
func (a *Attributor) MemberJoined(ctx context.Context, guildID, userID string) {
	pre, err := a.store.GetInviteUses(ctx, guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to load invite baseline")
		a.unknown(guildID, userID)
		return
	}
	preByCode := make(map[string]models.InviteUse, len(pre))
	for _, use := range pre {
		preByCode[use.Code] = use
	}

	post, err := a.fetcher.FetchInvites(guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to fetch invites, attribution degraded")
		a.unknown(guildID, userID)
		return
	}

	var matched *models.InviteUse
	for i, use := range post {
		before, ok := preByCode[use.Code]
		if !ok {
			continue
		}
		if diff(use.Uses, before.Uses) >= 1 {
			matched = &post[i]
			break
		}
	}

	// Refresh the baseline with everything just observed, match or not.
	for _, use := range post {
		if err := a.store.UpsertInviteUse(ctx, use); err != nil {
			a.logger.Error().Err(err).
				Str("guild_id", guildID).
				Str("code", use.Code).
				Msg("Failed to update invite baseline")
		}
	}

	if matched != nil {
		a.metrics.InviteJoins.WithLabelValues("attributed").Inc()
		a.logger.Info().
			Str("guild_id", guildID).
			Str("user_id", userID).
			Str("code", matched.Code).
			Str("inviter_id", matched.InviterID).
			Msg("Join attributed to invite")
		a.notifier.NotifyInviteUsed(guildID, userID, *matched)
		return
	}

	if a.attributeVanity(ctx, guildID, userID, preByCode) {
		return
	}

	a.unknown(guildID, userID)
}

// attributeVanity compares the vanity-URL counter the same way and reports
// whether the join was attributed to it.
func (a *Attributor) attributeVanity(ctx context.Context, guildID, userID string, preByCode map[string]models.InviteUse) bool {
	vanity, err := a.fetcher.FetchVanity(guildID)
	if err != nil {
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to fetch vanity invite")
		return false
	}
	if vanity == nil {
		return false
	}

	before, seen := preByCode[vanity.Code]
	if err := a.store.UpsertInviteUse(ctx, *vanity); err != nil {
		a.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to update vanity baseline")
	}
	if !seen || diff(vanity.Uses, before.Uses) < 1 {
		return false
	}

	a.metrics.InviteJoins.WithLabelValues("vanity").Inc()
	a.logger.Info().
		Str("guild_id", guildID).
		Str("user_id", userID).
		Str("code", vanity.Code).
		Msg("Join attributed to vanity URL")
	a.notifier.NotifyInviteUsed(guildID, userID, *vanity)
	return true
}

func (a *Attributor) unknown(guildID, userID string) {
	a.metrics.InviteJoins.WithLabelValues("unknown").Inc()
	a.notifier.NotifyUnknownInvite(guildID, userID)
}

func diff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
