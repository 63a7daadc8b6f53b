package webhook

import (
	"fmt"
	"strings"
	"time"

	"inkwatch/internal/notification"
)

// Render builds the webhook message for n. It is a pure function.
func Render(n notification.Notification, mentions notification.Mentions) Message {
	e := Embed{
		Title:     notification.Title(n),
		Color:     notification.Color(n),
		Thumbnail: &EmbedImage{URL: notification.Thumbnail(n)},
	}

	switch n := n.(type) {
	case notification.Splatfest:
		e.Fields = []EmbedField{
			timeField("Starts", n.Start),
			timeField("Tricolor", n.Tricolor),
			timeField("Ends", n.End),
			{Name: n.Title, Value: strings.Join(n.Teams, "\n")},
		}
		e.Image = image(n.TeamImage)
	case notification.EggstraWork:
		e.Fields = []EmbedField{
			timeField("Starts", n.Start),
			timeField("Ends", n.End),
			{Name: "Weapons", Value: strings.Join(n.Weapons, "\n")},
			{Name: "Stage", Value: n.Stage.Name},
		}
		e.Image = image(n.Stage.Image)
	case notification.Random:
		e.Fields = []EmbedField{
			timeField("Starts", n.Start),
			timeField("Ends", n.End),
			{Name: "Weapons", Value: strings.Join(n.Weapons, "\n")},
			{Name: "King Salmonid", Value: n.King},
			{Name: "Stage", Value: n.Stage.Name},
		}
		e.Image = image(n.Stage.Image)
	case notification.BigRun:
		e.Fields = kingStageFields(n.Start, n.End, n.King, n.Stage)
		e.Image = image(n.Stage.Image)
	case notification.Golden:
		e.Fields = kingStageFields(n.Start, n.End, n.King, n.Stage)
		e.Image = image(n.Stage.Image)
	}

	return Message{
		Content:   mentions.For(n),
		Username:  notification.Username(n),
		AvatarURL: notification.Avatar(n),
		Embeds:    []Embed{e},
	}
}

func kingStageFields(start, end time.Time, king string, stage notification.Stage) []EmbedField {
	return []EmbedField{
		timeField("Starts", start),
		timeField("Ends", end),
		{Name: "King Salmonid", Value: king},
		{Name: "Stage", Value: stage.Name},
	}
}

// timeField renders a Discord timestamp pair: relative in the name, full date in the value.
func timeField(label string, t time.Time) EmbedField {
	ts := t.Unix()
	return EmbedField{
		Name:   fmt.Sprintf("%s <t:%d:R>", label, ts),
		Value:  fmt.Sprintf("<t:%d:f>", ts),
		Inline: true,
	}
}

func image(url string) *EmbedImage {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	return &EmbedImage{URL: url}
}
