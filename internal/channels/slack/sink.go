package slack

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/fleetops/fleetops/internal/channels"
)

// slackSink adapts one Slack channel to channels.Sink. Slack has no
// embed concept at the Web API level for bot messages, so Embed renders
// as a colored attachment with fields, per spec.md §4.7 mirroring
// Discord's embed without code-fence rewriting.
type slackSink struct {
	api       *slack.Client
	channelID string
}

func (s *slackSink) SendChunk(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false))
	return err
}

func (s *slackSink) SendEmbed(ctx context.Context, e channels.Embed) error {
	attachment := slack.Attachment{
		Title: e.Title,
		Text:  e.Description,
		Color: colorHex(e.Color),
	}
	for _, f := range e.Fields {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Inline,
		})
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionAttachments(attachment))
	return err
}

func colorHex(c int) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 7)
	b[0] = '#'
	for i := 5; i >= 0; i-- {
		b[1+i] = hex[c&0xf]
		c >>= 4
	}
	return string(b)
}
