package discord

import (
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	"github.com/bwmarrin/discordgo"
)

func toEmbeds(in []chat.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if e.Thumbnail != "" {
			me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, me)
	}
	return out
}

var buttonStyles = map[chat.ButtonStyle]discordgo.ButtonStyle{
	chat.ButtonPrimary:   discordgo.PrimaryButton,
	chat.ButtonSecondary: discordgo.SecondaryButton,
	chat.ButtonSuccess:   discordgo.SuccessButton,
	chat.ButtonDanger:    discordgo.DangerButton,
}

// toComponents lays buttons out in one row and the select menu in its own.
func toComponents(msg chat.Message) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons {
			style, ok := buttonStyles[b.Style]
			if !ok {
				style = discordgo.PrimaryButton
			}
			row.Components = append(row.Components, discordgo.Button{CustomID: b.CustomID, Label: b.Label, Style: style})
		}
		rows = append(rows, row)
	}
	if msg.Select != nil {
		menu := discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    msg.Select.CustomID,
			Placeholder: msg.Select.Placeholder,
		}
		for _, o := range msg.Select.Options {
			menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}
	return rows
}

func toSend(msg chat.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg),
	}
}

// toEdit replaces content, embeds and components as a whole.
func toEdit(channelID, messageID string, msg chat.Message) *discordgo.MessageEdit {
	content := msg.Content
	embeds := toEmbeds(msg.Embeds)
	components := toComponents(msg)
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Content = &content
	edit.Embeds = &embeds
	edit.Components = &components
	return edit
}

func toModal(f chat.Form) *discordgo.InteractionResponseData {
	rows := make([]discordgo.MessageComponent, 0, len(f.Fields))
	for _, field := range f.Fields {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    field.CustomID,
				Label:       field.Label,
				Style:       discordgo.TextInputShort,
				Placeholder: field.Placeholder,
				Required:    field.Required,
				MinLength:   field.MinLength,
				MaxLength:   field.MaxLength,
			},
		}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   f.CustomID,
		Title:      f.Title,
		Components: rows,
	}
}
