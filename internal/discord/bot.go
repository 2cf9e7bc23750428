package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"levelbot/internal/config"
	"levelbot/internal/database"
	"levelbot/internal/invites"
	"levelbot/internal/leveling"
	"levelbot/internal/metrics"
	"levelbot/internal/models"
	"levelbot/pkg/utils"
)

// Bot represents the Discord bot
type Bot struct {
	session    *discordgo.Session
	repository *database.Repository
	tracker    *leveling.Tracker
	attributor *invites.Attributor
	cfg        *config.Config
	logger     zerolog.Logger

	musicMu sync.Mutex
	music   map[string]*musicSession // key: guildID
}

// New creates a new Discord bot
func New(cfg *config.Config, repository *database.Repository, tracker *leveling.Tracker, m *metrics.Metrics, logger *zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	bot := &Bot{
		session:    session,
		repository: repository,
		tracker:    tracker,
		cfg:        cfg,
		logger:     logger.With().Str("component", "discord").Logger(),
		music:      make(map[string]*musicSession),
	}
	bot.attributor = invites.NewAttributor(repository, bot, bot, m, logger)

	// Add event handlers
	session.AddHandler(bot.ready)
	session.AddHandler(bot.guildCreate)
	session.AddHandler(bot.messageCreate)
	session.AddHandler(bot.voiceStateUpdate)
	session.AddHandler(bot.guildMemberAdd)
	session.AddHandler(bot.interactionCreate)

	return bot, nil
}

// Start starts the bot
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	b.logger.Info().Msg("Bot is running")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	return b.session.Close()
}

// ready registers the slash commands once the gateway session is up.
func (b *Bot) ready(s *discordgo.Session, _ *discordgo.Ready) {
	b.registerCommands(s)
}

// guildCreate seeds process state for a guild that just became available:
// the voice-activity set from the guild's current voice states, and the
// invite-use baseline from a fresh fetch.
func (b *Bot) guildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		b.tracker.RecordVoiceJoin(leveling.Member{GuildID: g.ID, UserID: vs.UserID})
	}

	go b.attributor.SyncGuild(context.Background(), g.ID)

	b.logger.Info().
		Str("guild_id", g.ID).
		Int("voice_members", len(g.VoiceStates)).
		Msg("Guild available")
}

// messageCreate records chat activity and routes mention-driven music
// commands.
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot || m.GuildID == "" {
		return
	}

	b.tracker.RecordChatMessage(leveling.Member{GuildID: m.GuildID, UserID: m.Author.ID})

	if b.isBotMentioned(s, m) {
		b.handleMusicCommand(s, m)
	}
}

// voiceStateUpdate keeps the live voice set in sync. A non-empty channel is
// a join (or a move, which keeps the member in the set); an empty channel
// is a leave.
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	member := leveling.Member{GuildID: vs.GuildID, UserID: vs.UserID}
	if vs.ChannelID != "" {
		b.tracker.RecordVoiceJoin(member)
		return
	}
	b.tracker.RecordVoiceLeave(member)
}

// guildMemberAdd runs invite attribution for the new member.
func (b *Bot) guildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	go b.attributor.MemberJoined(context.Background(), m.GuildID, m.User.ID)
}

func (b *Bot) isBotMentioned(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if s.State.User == nil {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			return true
		}
	}
	return false
}

// announceChannel resolves the channel for bot announcements: a configured
// channel if set, otherwise the guild's system channel.
func (b *Bot) announceChannel(guildID, configured string) string {
	if configured != "" {
		return configured
	}
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		guild, err = b.session.Guild(guildID)
		if err != nil {
			b.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to resolve announce channel")
			return ""
		}
	}
	return guild.SystemChannelID
}

// AnnounceLevelUp posts a level-up message to the level channel.
func (b *Bot) AnnounceLevelUp(guildID, userID string, level int) {
	channelID := b.announceChannel(guildID, b.cfg.LevelChannelID)
	if channelID == "" {
		return
	}
	msg := fmt.Sprintf("🎉 %s reached level **%d**!", utils.FormatUserMention(userID), level)
	if _, err := b.session.ChannelMessageSend(channelID, msg); err != nil {
		b.logger.Error().Err(err).
			Str("guild_id", guildID).
			Str("user_id", userID).
			Msg("Failed to send level-up announcement")
	}
}

// NotifyInviteUsed posts a join notification naming the invite used.
func (b *Bot) NotifyInviteUsed(guildID, userID string, invite models.InviteUse) {
	channelID := b.announceChannel(guildID, b.cfg.InviteLogChannelID)
	if channelID == "" {
		return
	}

	var msg string
	if invite.InviterID != "" {
		msg = fmt.Sprintf("👋 %s joined using invite `%s` from %s (%d uses)",
			utils.FormatUserMention(userID), invite.Code, utils.FormatUserMention(invite.InviterID), invite.Uses)
	} else {
		msg = fmt.Sprintf("👋 %s joined using the vanity URL `%s` (%d uses)",
			utils.FormatUserMention(userID), invite.Code, invite.Uses)
	}
	if _, err := b.session.ChannelMessageSend(channelID, msg); err != nil {
		b.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to send invite notification")
	}
}

// NotifyUnknownInvite posts a join notification when no invite matched.
func (b *Bot) NotifyUnknownInvite(guildID, userID string) {
	channelID := b.announceChannel(guildID, b.cfg.InviteLogChannelID)
	if channelID == "" {
		return
	}
	msg := fmt.Sprintf("👋 %s joined (invite unknown)", utils.FormatUserMention(userID))
	if _, err := b.session.ChannelMessageSend(channelID, msg); err != nil {
		b.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to send invite notification")
	}
}

// FetchInvites returns the guild's current invites in platform order.
func (b *Bot) FetchInvites(guildID string) ([]models.InviteUse, error) {
	fetched, err := b.session.GuildInvites(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild invites: %w", err)
	}

	uses := make([]models.InviteUse, 0, len(fetched))
	for _, inv := range fetched {
		use := models.InviteUse{
			GuildID: guildID,
			Code:    inv.Code,
			Uses:    inv.Uses,
		}
		if inv.Inviter != nil {
			use.InviterID = inv.Inviter.ID
		}
		uses = append(uses, use)
	}
	return uses, nil
}

// FetchVanity returns the guild's vanity invite with its use count, or nil
// when the guild has none. discordgo has no wrapper for the vanity-url
// endpoint, so it is requested directly.
func (b *Bot) FetchVanity(guildID string) (*models.InviteUse, error) {
	body, err := b.session.RequestWithBucketID("GET",
		discordgo.EndpointGuild(guildID)+"/vanity-url",
		nil, discordgo.EndpointGuild(guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vanity url: %w", err)
	}

	var vanity struct {
		Code *string `json:"code"`
		Uses int     `json:"uses"`
	}
	if err := json.Unmarshal(body, &vanity); err != nil {
		return nil, fmt.Errorf("failed to decode vanity url: %w", err)
	}
	if vanity.Code == nil || *vanity.Code == "" {
		return nil, nil
	}
	return &models.InviteUse{GuildID: guildID, Code: *vanity.Code, Uses: vanity.Uses}, nil
}
