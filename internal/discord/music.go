package discord

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"layeh.com/gopus"

	"github.com/bwmarrin/discordgo"
	"github.com/kkdai/youtube/v2"

	"levelbot/pkg/utils"
)

// track represents one queued song
type track struct {
	Title     string
	URL       string
	Duration  time.Duration
	Requester string
	ChannelID string
	Thumbnail string
}

// musicSession holds a guild's queue and voice connection
type musicSession struct {
	tracks    []track
	current   int
	playing   bool
	loop      bool
	voiceConn *discordgo.VoiceConnection
}

var ytClient = youtube.Client{}

var youtubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=`),
	regexp.MustCompile(`^https?://youtu\.be/`),
}

// handleMusicCommand routes mention-driven music commands.
func (b *Bot) handleMusicCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	content := strings.TrimSpace(m.Content)

	botUserID := s.State.User.ID
	content = strings.ReplaceAll(content, "<@"+botUserID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botUserID+">", "")
	content = strings.TrimSpace(content)

	if content == "" {
		s.ChannelMessageSend(m.ChannelID, "🎵 **Music**\n\n"+
			"• `@bot [YouTube URL]` - Play a song\n"+
			"• `@bot skip` - Skip the current song\n"+
			"• `@bot stop` - Stop and clear the queue\n"+
			"• `@bot queue` - Show the queue\n"+
			"• `@bot loop` - Toggle loop mode")
		return
	}

	voiceState, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || voiceState == nil {
		s.ChannelMessageSend(m.ChannelID, "❌ Join a voice channel first!")
		return
	}

	parts := strings.Fields(content)
	switch strings.ToLower(parts[0]) {
	case "skip":
		b.handleSkip(s, m)
	case "stop":
		b.handleStop(s, m)
	case "queue":
		b.handleQueue(s, m)
	case "loop":
		b.handleLoop(s, m)
	default:
		b.handlePlay(s, m, content, voiceState.ChannelID)
	}
}

// handlePlay queues a song and starts the player if idle.
func (b *Bot) handlePlay(s *discordgo.Session, m *discordgo.MessageCreate, query, channelID string) {
	b.logger.Debug().Str("user_id", m.Author.ID).Str("query", query).Msg("Music query")

	loadingMsg, _ := s.ChannelMessageSend(m.ChannelID, "🔍 Looking up the song...")

	t, err := b.lookupTrack(query)
	if err != nil {
		b.logger.Error().Err(err).Str("query", query).Msg("Track lookup failed")
		s.ChannelMessageEdit(m.ChannelID, loadingMsg.ID, "❌ Could not look up the song: "+err.Error())
		return
	}

	t.Requester = m.Author.Username
	t.ChannelID = m.ChannelID

	session := b.getOrCreateMusicSession(m.GuildID)

	b.musicMu.Lock()
	session.tracks = append(session.tracks, *t)
	alreadyPlaying := session.playing
	b.musicMu.Unlock()

	embed := &discordgo.MessageEmbed{
		Title: "🎵 Queued",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Title", Value: t.Title, Inline: true},
			{Name: "Duration", Value: utils.FormatDuration(int64(t.Duration.Seconds())), Inline: true},
			{Name: "Requested by", Value: t.Requester, Inline: true},
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail},
		Color:     0x00ff00,
	}
	s.ChannelMessageEditEmbed(m.ChannelID, loadingMsg.ID, embed)

	if session.voiceConn == nil || !session.voiceConn.Ready {
		if err := b.connectToVoice(s, m.GuildID, channelID); err != nil {
			s.ChannelMessageSend(m.ChannelID, "❌ Could not join the voice channel: "+err.Error())
			return
		}
	}

	if !alreadyPlaying {
		go b.runPlayer(s, m.GuildID)
	}
}

// lookupTrack resolves a query to a playable track. Only direct YouTube
// URLs are supported.
func (b *Bot) lookupTrack(query string) (*track, error) {
	for _, p := range youtubeURLPatterns {
		if p.MatchString(query) {
			return b.lookupYouTube(query)
		}
	}
	return nil, fmt.Errorf("only YouTube URLs are supported, e.g. `@bot https://youtube.com/watch?v=VIDEO_ID`")
}

func (b *Bot) lookupYouTube(url string) (*track, error) {
	video, err := ytClient.GetVideo(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video info: %w", err)
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	return &track{
		Title:     video.Title,
		URL:       url,
		Duration:  video.Duration,
		Thumbnail: thumbnail,
	}, nil
}

func (b *Bot) getOrCreateMusicSession(guildID string) *musicSession {
	b.musicMu.Lock()
	defer b.musicMu.Unlock()
	session, exists := b.music[guildID]
	if !exists {
		session = &musicSession{}
		b.music[guildID] = session
	}
	return session
}

// connectToVoice joins a voice channel and waits for the connection to be
// ready.
func (b *Bot) connectToVoice(s *discordgo.Session, guildID, channelID string) error {
	voiceConn, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			voiceConn.Disconnect()
			return fmt.Errorf("timeout waiting for voice connection")
		case <-ticker.C:
			if voiceConn.Ready {
				session := b.getOrCreateMusicSession(guildID)
				b.musicMu.Lock()
				session.voiceConn = voiceConn
				b.musicMu.Unlock()
				return nil
			}
		}
	}
}

// runPlayer plays through the queue until it is exhausted.
func (b *Bot) runPlayer(s *discordgo.Session, guildID string) {
	session := b.getOrCreateMusicSession(guildID)

	b.musicMu.Lock()
	session.playing = true
	b.musicMu.Unlock()

	for {
		b.musicMu.Lock()
		if !session.playing || session.current >= len(session.tracks) {
			b.musicMu.Unlock()
			break
		}
		t := session.tracks[session.current]
		vc := session.voiceConn
		b.musicMu.Unlock()

		embed := &discordgo.MessageEmbed{
			Title: "🎵 Now Playing",
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Title", Value: t.Title, Inline: true},
				{Name: "Duration", Value: utils.FormatDuration(int64(t.Duration.Seconds())), Inline: true},
				{Name: "Requested by", Value: t.Requester, Inline: true},
			},
			Thumbnail: &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail},
			Color:     0x00ff00,
		}
		s.ChannelMessageSendEmbed(t.ChannelID, embed)

		if err := b.streamAudio(vc, t.URL); err != nil {
			b.logger.Error().Err(err).Str("url", t.URL).Msg("Audio stream failed")
			s.ChannelMessageSend(t.ChannelID, fmt.Sprintf("❌ Playback failed: %v", err))
		}

		b.musicMu.Lock()
		session.current++
		if session.current >= len(session.tracks) && session.loop {
			session.current = 0
		}
		b.musicMu.Unlock()
	}

	b.musicMu.Lock()
	session.playing = false
	session.current = 0
	b.musicMu.Unlock()
}

// streamAudio decodes a YouTube audio stream to PCM with ffmpeg and sends
// it as 20ms Opus frames.
func (b *Bot) streamAudio(vc *discordgo.VoiceConnection, url string) error {
	if vc == nil || !vc.Ready {
		return fmt.Errorf("voice connection not ready")
	}

	video, err := ytClient.GetVideo(url)
	if err != nil {
		return fmt.Errorf("failed to fetch video info: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return fmt.Errorf("no audio formats available")
	}

	var format *youtube.Format
	for i, f := range formats {
		if f.ItagNo == 251 || strings.Contains(f.MimeType, "audio/webm") {
			format = &formats[i]
			break
		}
	}
	if format == nil {
		for i, f := range formats {
			if f.ItagNo == 140 || strings.Contains(f.MimeType, "audio/mp4") {
				format = &formats[i]
				break
			}
		}
	}
	if format == nil {
		format = &formats[0]
	}

	cmd := ffmpegPCMCommand(format.URL)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer cmd.Wait()

	opusEncoder, err := gopus.NewEncoder(48000, 2, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to create Opus encoder: %w", err)
	}

	vc.Speaking(true)
	defer vc.Speaking(false)

	// 20ms frame @48kHz stereo
	pcmBuf := make([]byte, 960*2*2)
	pcmInt16 := make([]int16, 960*2)

	for {
		if _, err := io.ReadFull(stdout, pcmBuf); err == io.EOF {
			break
		} else if err != nil {
			b.logger.Error().Err(err).Msg("Error reading PCM data")
			break
		}

		if err := binary.Read(bytes.NewReader(pcmBuf), binary.LittleEndian, pcmInt16); err != nil {
			b.logger.Error().Err(err).Msg("Error decoding PCM frame")
			continue
		}

		opusFrame, err := opusEncoder.Encode(pcmInt16, 960, 1920)
		if err != nil {
			b.logger.Error().Err(err).Msg("Error encoding Opus frame")
			continue
		}

		select {
		case vc.OpusSend <- opusFrame:
		case <-time.After(5 * time.Second):
			return fmt.Errorf("timeout sending audio frame")
		}
	}

	return nil
}

func (b *Bot) handleSkip(s *discordgo.Session, m *discordgo.MessageCreate) {
	session := b.getOrCreateMusicSession(m.GuildID)

	b.musicMu.Lock()
	empty := len(session.tracks) == 0
	if !empty {
		session.current++
	}
	b.musicMu.Unlock()

	if empty {
		s.ChannelMessageSend(m.ChannelID, "❌ The queue is empty!")
		return
	}
	s.ChannelMessageSend(m.ChannelID, "⏭️ Skipping...")
}

func (b *Bot) handleStop(s *discordgo.Session, m *discordgo.MessageCreate) {
	session := b.getOrCreateMusicSession(m.GuildID)

	b.musicMu.Lock()
	session.playing = false
	session.tracks = nil
	session.current = 0
	vc := session.voiceConn
	session.voiceConn = nil
	b.musicMu.Unlock()

	if vc != nil {
		vc.Disconnect()
	}
	s.ChannelMessageSend(m.ChannelID, "⏹️ Stopped and cleared the queue.")
}

func (b *Bot) handleQueue(s *discordgo.Session, m *discordgo.MessageCreate) {
	session := b.getOrCreateMusicSession(m.GuildID)

	b.musicMu.Lock()
	tracks := make([]track, len(session.tracks))
	copy(tracks, session.tracks)
	current := session.current
	b.musicMu.Unlock()

	if len(tracks) == 0 {
		s.ChannelMessageSend(m.ChannelID, "📋 The queue is empty!")
		return
	}

	var queueText strings.Builder
	queueText.WriteString("📋 **Queue**\n\n")
	for i, t := range tracks {
		status := fmt.Sprintf("%d.", i+1)
		if i == current {
			status = "🎵"
		} else if i < current {
			status = "✅"
		}
		queueText.WriteString(fmt.Sprintf("%s %s - %s\n", status, t.Title, utils.FormatDuration(int64(t.Duration.Seconds()))))
	}
	s.ChannelMessageSend(m.ChannelID, queueText.String())
}

func (b *Bot) handleLoop(s *discordgo.Session, m *discordgo.MessageCreate) {
	session := b.getOrCreateMusicSession(m.GuildID)

	b.musicMu.Lock()
	session.loop = !session.loop
	enabled := session.loop
	b.musicMu.Unlock()

	status := "❌ OFF"
	if enabled {
		status = "✅ ON"
	}
	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("🔁 Loop mode: %s", status))
}
