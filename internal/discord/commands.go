package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"levelbot/internal/leveling"
	"levelbot/pkg/utils"
)

var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "level",
		Description: "Show a member's level and XP progress",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "Member to look up (defaults to you)",
				Required:    false,
			},
		},
	},
	{
		Name:        "leaderboard",
		Description: "Show the top 10 members by XP",
	},
}

func (b *Bot) registerCommands(s *discordgo.Session) {
	if s.State.User == nil {
		return
	}
	for _, cmd := range slashCommands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", cmd); err != nil {
			b.logger.Error().Err(err).Str("command", cmd.Name).Msg("Failed to register slash command")
		}
	}
	b.logger.Info().Int("count", len(slashCommands)).Msg("Slash commands registered")
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID == "" {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "level":
		b.handleLevelCommand(s, i)
	case "leaderboard":
		b.handleLeaderboardCommand(s, i)
	}
}

// handleLevelCommand handles the /level command
func (b *Bot) handleLevelCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	target := i.Member.User
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "member" {
			target = opt.UserValue(s)
		}
	}

	xp, err := b.repository.GetXP(context.Background(), i.GuildID, target.ID)
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("Failed to get XP for /level")
		b.respondError(s, i)
		return
	}

	level := leveling.LevelForXP(xp)
	nextXP := leveling.XPForLevel(level + 1)
	progress := leveling.LevelProgressPercent(xp)

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📊 Level %d", level),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: utils.FormatUserMention(target.ID), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d", xp), Inline: true},
			{Name: "Next level", Value: fmt.Sprintf("%d XP to go", nextXP-xp), Inline: true},
			{Name: "Progress", Value: fmt.Sprintf("%s %d%%", utils.FormatProgressBar(progress), progress)},
		},
		Color: 0x00ff00,
	}

	b.respond(s, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

// handleLeaderboardCommand handles the /leaderboard command
func (b *Bot) handleLeaderboardCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	top, err := b.repository.GetTopXP(context.Background(), i.GuildID, 10)
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("Failed to get leaderboard")
		b.respondError(s, i)
		return
	}

	if len(top) == 0 {
		b.respond(s, i, &discordgo.InteractionResponseData{Content: "📋 Nobody has earned XP yet."})
		return
	}

	var lines []string
	for rank, entry := range top {
		lines = append(lines, utils.FormatLeaderboardEntry(
			rank+1, utils.FormatUserMention(entry.UserID), leveling.LevelForXP(entry.XP), entry.XP))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard",
		Description: strings.Join(lines, "\n"),
		Color:       0x00ff00,
	}
	b.respond(s, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to respond to interaction")
	}
}

func (b *Bot) respondError(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.respond(s, i, &discordgo.InteractionResponseData{
		Content: "❌ Something went wrong, try again later.",
	})
}
