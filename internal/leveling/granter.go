package leveling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"levelbot/internal/metrics"
)

// Store defines the persistence operations required by the granter.
type Store interface {
	// GetXP returns the member's XP, or 0 when no row exists.
	GetXP(ctx context.Context, guildID, userID string) (int64, error)
	// AddXP increments the member's XP, creating the row on first grant.
	AddXP(ctx context.Context, guildID, userID string, delta int64) error
}

// Announcer posts level-up announcements.
type Announcer interface {
	AnnounceLevelUp(guildID, userID string, level int)
}

// GranterConfig holds the granter's tunables.
type GranterConfig struct {
	// Interval between grant cycles (default: 1 minute)
	Interval time.Duration

	// ChatAward is the XP granted per cycle for chat activity
	ChatAward int64

	// VoiceAward is the XP granted per cycle for voice presence
	VoiceAward int64
}

// DefaultGranterConfig returns the stock awards: 100 XP per cycle for each
// activity source, granted every minute.
func DefaultGranterConfig() GranterConfig {
	return GranterConfig{
		Interval:   time.Minute,
		ChatAward:  100,
		VoiceAward: 100,
	}
}

// Granter periodically converts recorded activity into XP. One cycle drains
// the chat window, snapshots the voice set, grants the configured award per
// member, and announces level-ups. A cycle that fires while the previous
// one is still running is skipped, not queued.
type Granter struct {
	store     Store
	tracker   *Tracker
	announcer Announcer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	config    GranterConfig

	ticking atomic.Bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewGranter creates a granter. Zero config fields fall back to defaults.
func NewGranter(store Store, tracker *Tracker, announcer Announcer, m *metrics.Metrics, logger *zerolog.Logger, config GranterConfig) *Granter {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.ChatAward <= 0 {
		config.ChatAward = 100
	}
	if config.VoiceAward <= 0 {
		config.VoiceAward = 100
	}

	return &Granter{
		store:     store,
		tracker:   tracker,
		announcer: announcer,
		metrics:   m,
		logger:    logger.With().Str("component", "granter").Logger(),
		config:    config,
	}
}

// Start begins the grant loop.
func (g *Granter) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("granter already running")
	}
	g.running = true
	g.stopCh = make(chan struct{})
	g.doneCh = make(chan struct{})
	g.mu.Unlock()

	g.logger.Info().
		Dur("interval", g.config.Interval).
		Int64("chat_award", g.config.ChatAward).
		Int64("voice_award", g.config.VoiceAward).
		Msg("Starting XP granter")

	go g.run(ctx)
	return nil
}

// Stop stops the grant loop and waits for it to exit. An in-flight cycle
// finishes; pending activity is simply lost, matching process shutdown.
func (g *Granter) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	close(g.stopCh)
	<-g.doneCh

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.logger.Info().Msg("XP granter stopped")
	return nil
}

func (g *Granter) run(ctx context.Context) {
	defer close(g.doneCh)

	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.RunOnce(ctx)
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce executes a single grant cycle. It reports false when the cycle
// was skipped because another one is still in progress.
func (g *Granter) RunOnce(ctx context.Context) bool {
	if !g.ticking.CompareAndSwap(false, true) {
		g.metrics.TicksSkipped.Inc()
		g.logger.Warn().Msg("Previous grant cycle still running, skipping tick")
		return false
	}
	defer g.ticking.Store(false)

	start := time.Now()

	chatted := g.tracker.DrainChatActivity()
	for _, m := range chatted {
		g.grant(ctx, m, g.config.ChatAward, "chat")
	}

	inVoice := g.tracker.SnapshotVoiceActivity()
	for _, m := range inVoice {
		g.grant(ctx, m, g.config.VoiceAward, "voice")
	}

	g.metrics.TickDuration.Observe(time.Since(start).Seconds())

	if len(chatted) > 0 || len(inVoice) > 0 {
		g.logger.Debug().
			Int("chat_members", len(chatted)).
			Int("voice_members", len(inVoice)).
			Dur("elapsed", time.Since(start)).
			Msg("Grant cycle complete")
	}
	return true
}

// grant awards XP to a single member. Failures are logged and skipped so
// one bad member cannot block the rest of the cycle; a lost grant is not
// retried.
func (g *Granter) grant(ctx context.Context, m Member, award int64, source string) {
	pre, err := g.store.GetXP(ctx, m.GuildID, m.UserID)
	if err != nil {
		g.metrics.GrantErrors.Inc()
		g.logger.Error().Err(err).
			Str("guild_id", m.GuildID).
			Str("user_id", m.UserID).
			Msg("Failed to read XP, skipping grant")
		return
	}

	if err := g.store.AddXP(ctx, m.GuildID, m.UserID, award); err != nil {
		g.metrics.GrantErrors.Inc()
		g.logger.Error().Err(err).
			Str("guild_id", m.GuildID).
			Str("user_id", m.UserID).
			Msg("Failed to add XP")
		return
	}
	g.metrics.XPGrants.WithLabelValues(source).Inc()

	levelBefore := LevelForXP(pre)
	levelAfter := LevelForXP(pre + award)
	if levelAfter > levelBefore {
		g.metrics.LevelUps.Inc()
		g.logger.Info().
			Str("guild_id", m.GuildID).
			Str("user_id", m.UserID).
			Int("level", levelAfter).
			Msg("Member leveled up")
		g.announcer.AnnounceLevelUp(m.GuildID, m.UserID, levelAfter)
	}
}
