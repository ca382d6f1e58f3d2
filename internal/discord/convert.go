package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zsiec/hostpanel/internal/dashboard"
)

// Embed and component limits enforced by the platform.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFields      = 25
	maxFooter      = 2048
	maxRows        = 5
	maxLabel       = 80
	maxModalTitle  = 45
	maxPlaceholder = 150

	emptyValue = "\u200b"
	noneOption = "none"
)

// panelEmbed converts a rendered panel into an embed.
func panelEmbed(p dashboard.Panel) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       dashboard.Truncate(p.Title, maxTitle),
		Description: dashboard.Truncate(p.Description, maxDescription),
		Color:       int(p.Color),
	}
	if p.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.Thumbnail}
	}
	if p.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: dashboard.Truncate(p.Footer, maxFooter)}
	}
	for i, f := range p.Fields {
		if i == maxFields {
			break
		}
		value := f.Value
		if value == "" {
			value = emptyValue
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   dashboard.Truncate(f.Name, maxFieldName),
			Value:  dashboard.Truncate(value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	return e
}

// notificationEmbed renders a private notice.
func notificationEmbed(n dashboard.Notification) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       dashboard.Truncate(n.Severity.Icon()+" "+n.Title, maxTitle),
		Description: dashboard.Truncate(n.Body, maxDescription),
		Color:       int(n.Severity.Color()),
	}
}

// components converts control rows for session. Rows past the platform
// limit are dropped.
func components(session string, rows []dashboard.ControlRow) ([]discordgo.MessageComponent, error) {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if len(out) == maxRows {
			break
		}
		cs := make([]discordgo.MessageComponent, 0, len(row))
		for _, c := range row {
			mc, err := component(session, c)
			if err != nil {
				return nil, err
			}
			cs = append(cs, mc)
		}
		out = append(out, discordgo.ActionsRow{Components: cs})
	}
	return out, nil
}

func component(session string, c dashboard.Control) (discordgo.MessageComponent, error) {
	switch c.Kind {
	case dashboard.ControlLink:
		return discordgo.Button{
			Label:    dashboard.Truncate(c.Label, maxLabel),
			Style:    discordgo.LinkButton,
			URL:      c.URL,
			Disabled: c.Disabled,
		}, nil
	case dashboard.ControlSelect:
		return selectMenu(session, c)
	default:
		id, err := EncodeCustomID(session, c.Action, c.Arg)
		if err != nil {
			return nil, err
		}
		return discordgo.Button{
			Label:    dashboard.Truncate(c.Label, maxLabel),
			Style:    buttonStyle(c.Style),
			CustomID: id,
			Disabled: c.Disabled,
		}, nil
	}
}

func buttonStyle(s dashboard.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case dashboard.StylePrimary:
		return discordgo.PrimaryButton
	case dashboard.StyleSuccess:
		return discordgo.SuccessButton
	case dashboard.StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

// selectMenu converts a select control. A menu needs at least one option,
// so an empty one gets a placeholder entry and is disabled.
func selectMenu(session string, c dashboard.Control) (discordgo.MessageComponent, error) {
	id, err := EncodeCustomID(session, c.Action, c.Arg)
	if err != nil {
		return nil, err
	}

	opts := c.Options
	if len(opts) > dashboard.MaxOptions {
		opts = opts[:dashboard.MaxOptions]
	}
	menu := discordgo.SelectMenu{
		CustomID:    id,
		Placeholder: dashboard.Truncate(c.Placeholder, maxPlaceholder),
		Disabled:    c.Disabled,
	}
	for _, o := range opts {
		so := discordgo.SelectMenuOption{
			Label:       dashboard.Truncate(o.Label, maxLabel),
			Value:       o.Value,
			Description: dashboard.Truncate(o.Description, 100),
			Default:     o.Default,
		}
		if o.Emoji != "" {
			so.Emoji = &discordgo.ComponentEmoji{Name: o.Emoji}
		}
		menu.Options = append(menu.Options, so)
	}
	if len(menu.Options) == 0 {
		label := c.Placeholder
		if label == "" {
			label = "Nothing to choose"
		}
		menu.Options = []discordgo.SelectMenuOption{{Label: dashboard.Truncate(label, maxLabel), Value: noneOption}}
		menu.Disabled = true
	}

	lo, hi := c.MinValues, c.MaxValues
	if hi <= 0 {
		hi = 1
	}
	if hi > len(menu.Options) {
		hi = len(menu.Options)
	}
	if lo > hi {
		lo = hi
	}
	if lo < 0 {
		lo = 0
	}
	menu.MinValues = &lo
	menu.MaxValues = hi
	return menu, nil
}

// modal converts a form into a modal response for session.
func modal(session string, f dashboard.Form) (*discordgo.InteractionResponseData, error) {
	id, err := EncodeCustomID(session, f.Submit, f.Arg)
	if err != nil {
		return nil, err
	}
	if len(f.Fields) == 0 || len(f.Fields) > maxRows {
		return nil, fmt.Errorf("form %q has %d fields", f.Title, len(f.Fields))
	}
	rows := make([]discordgo.MessageComponent, 0, len(f.Fields))
	for _, field := range f.Fields {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    field.ID,
				Label:       dashboard.Truncate(field.Label, 45),
				Style:       discordgo.TextInputShort,
				Placeholder: dashboard.Truncate(field.Placeholder, 100),
				Value:       field.Value,
				Required:    field.Required,
				MinLength:   field.MinLength,
				MaxLength:   field.MaxLength,
			},
		}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   id,
		Title:      dashboard.Truncate(f.Title, maxModalTitle),
		Components: rows,
	}, nil
}

// promptMessage converts a prompt into an embed and its controls.
func promptMessage(session string, p dashboard.Prompt) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	var rows []dashboard.ControlRow
	if p.Select != nil {
		rows = append(rows, dashboard.ControlRow{*p.Select})
	}
	if len(p.Buttons) > 0 {
		rows = append(rows, p.Buttons)
	}
	cs, err := components(session, rows)
	if err != nil {
		return nil, nil, err
	}
	embed := &discordgo.MessageEmbed{
		Title:       dashboard.Truncate(p.Title, maxTitle),
		Description: dashboard.Truncate(p.Body, maxDescription),
		Color:       int(dashboard.ColorPurple),
	}
	return embed, cs, nil
}

// modalFields collects the submitted text inputs by field id.
func modalFields(data discordgo.ModalSubmitInteractionData) map[string]string {
	fields := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok {
				fields[in.CustomID] = in.Value
			}
		}
	}
	return fields
}
