package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/fleetops/fleetops/internal/channels"
)

// discordSink adapts one Discord channel to channels.Sink, translating
// the platform-agnostic Embed shape into discordgo's MessageEmbed, per
// spec.md §4.6's embed rendering.
type discordSink struct {
	session        *discordgo.Session
	channelID      string
	maxOutputChars int
}

func (s *discordSink) SendChunk(_ context.Context, text string) error {
	_, err := s.session.ChannelMessageSend(s.channelID, text)
	return err
}

func (s *discordSink) SendEmbed(_ context.Context, e channels.Embed) error {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	_, err := s.session.ChannelMessageSendEmbed(s.channelID, embed)
	return err
}
