package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/zsiec/hostpanel/internal/dashboard"
	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
)

// handle routes one interaction.
func (b *Bot) handle(ctx context.Context, i *discordgo.Interaction) {
	ctx = logger.WithInteractionID(ctx, i.ID)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		metrics.RecordInteraction("command")
		data := i.ApplicationCommandData()
		switch data.Name {
		case b.cfg.CommandName:
			b.openPanel(ctx, i)
		case cmdCommit, cmdUpload:
			b.deployCommand(ctx, i, data)
		default:
			b.log.WithField("command", data.Name).Debug("Ignoring unknown command")
		}
	case discordgo.InteractionMessageComponent:
		metrics.RecordInteraction("component")
		data := i.MessageComponentData()
		b.dispatch(ctx, i, data.CustomID, data.Values, nil)
	case discordgo.InteractionModalSubmit:
		metrics.RecordInteraction("modal")
		data := i.ModalSubmitData()
		b.dispatch(ctx, i, data.CustomID, nil, modalFields(data))
	}
}

// openPanel answers the panel command with a new dashboard message.
func (b *Bot) openPanel(ctx context.Context, i *discordgo.Interaction) {
	if err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.WithError(err).Warn("Failed to acknowledge panel command")
		return
	}

	s := b.registry.Create(owner(i))
	ref := &panelRef{ChannelID: i.ChannelID, Anchor: i}
	b.panels.put(s.ID(), ref)

	p := newPresenter(b.api, i, s.ID(), nil, b.log)
	p.anchor = true
	p.responded = true
	p.onAnchor = func(m *discordgo.Message) {
		b.panels.put(s.ID(), &panelRef{ChannelID: m.ChannelID, MessageID: m.ID, Anchor: i})
	}

	if err := s.Open(ctx, p); err != nil {
		b.log.WithError(err).WithField("session_id", s.ID()).Debug("Dashboard opened on an error panel")
	}
}

// dispatch turns a component or modal interaction into a dashboard action.
func (b *Bot) dispatch(ctx context.Context, i *discordgo.Interaction, customID string, values []string, fields map[string]string) {
	id, err := ParseCustomID(customID)
	if err != nil {
		b.log.WithError(err).Debug("Ignoring foreign component")
		return
	}

	p := newPresenter(b.api, i, id.Session, b.panels.get(id.Session), b.log)
	if !id.Kind.OpensForm() {
		if err := p.acknowledge(); err != nil {
			b.log.WithError(err).Warn("Failed to acknowledge interaction")
			return
		}
	}

	a := dashboard.Action{
		Kind:   id.Kind,
		Arg:    id.Arg,
		Values: values,
		Fields: fields,
		UserID: userOf(i).ID,
	}
	if err := b.registry.Dispatch(logger.WithSessionID(ctx, id.Session), id.Session, p, a); err != nil {
		b.log.WithError(err).WithFields(map[string]interface{}{
			"session_id": id.Session,
			"action":     string(id.Kind),
		}).Debug("Action did not complete")
	}
	p.settle()
}

// expirePanel freezes the message of an expired dashboard.
func (b *Bot) expirePanel(s *dashboard.Session, final dashboard.Panel) {
	ref := b.panels.take(s.ID())
	if ref == nil {
		return
	}
	cs, err := components(s.ID(), final.Rows)
	if err != nil {
		b.log.WithError(err).Warn("Failed to draw expired panel")
		return
	}
	if err := editPanel(b.api, ref, panelEmbed(final), cs, b.log); err != nil {
		b.log.WithError(err).WithField("session_id", s.ID()).Debug("Failed to freeze expired panel")
	}
}

// deployCommand runs /commit or /upload and answers privately.
func (b *Bot) deployCommand(ctx context.Context, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) {
	if err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		b.log.WithError(err).Warn("Failed to acknowledge deploy command")
		return
	}

	n := b.runDeploy(ctx, data, userOf(i))
	embeds := []*discordgo.MessageEmbed{notificationEmbed(n)}
	if _, err := b.api.InteractionResponseEdit(i, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.log.WithError(err).Warn("Failed to report deploy result")
	}
}

func (b *Bot) runDeploy(ctx context.Context, data discordgo.ApplicationCommandInteractionData, user *discordgo.User) dashboard.Notification {
	fields := map[string]interface{}{"command": data.Name, "user_id": user.ID}

	att := attachmentOption(data, optFile)
	if att == nil {
		return b.failure(apperrors.NewValidationError("Attach a .zip file to the command."), fields)
	}
	fields["file"] = att.Filename

	if err := b.deploy.Precheck(att.Filename, int64(att.Size)); err != nil {
		return b.failure(err, fields)
	}
	body, err := b.fetch.Fetch(ctx, att.URL)
	if err != nil {
		return b.failure(err, fields)
	}
	archive := hosting.Archive{Name: att.Filename, Data: body}

	var (
		res   *hosting.ActionResult
		title string
		hint  string
	)
	switch data.Name {
	case cmdCommit:
		appID := strings.TrimSpace(stringOption(data, optAppID))
		fields["app_id"] = appID
		res, err = b.deploy.Commit(ctx, appID, archive)
		title = "📦 Commit sent"
	default:
		res, err = b.deploy.Upload(ctx, archive)
		title = "📤 Upload complete"
		hint = fmt.Sprintf("\n\nUse `/%s` to manage your new application.", b.cfg.CommandName)
	}
	if err != nil {
		return b.failure(err, fields)
	}

	b.log.WithFields(fields).Info("Archive deployed")
	return dashboard.Notification{
		Title:    title,
		Body:     fmt.Sprintf("**Status:** %s\n**Message:** %s%s", res.Status, orNone(res.Message), hint),
		Severity: dashboard.SeveritySuccess,
	}
}

func (b *Bot) failure(err error, fields map[string]interface{}) dashboard.Notification {
	d := b.errs.Describe(err, fields)
	sev := dashboard.SeverityError
	if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		sev = dashboard.SeverityWarning
	}
	return dashboard.Notification{Title: d.Title, Body: d.Detail, Severity: sev}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// userOf returns who triggered i, in a guild or a DM.
func userOf(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func owner(i *discordgo.Interaction) dashboard.Owner {
	u := userOf(i)
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	o := dashboard.Owner{ID: u.ID, Name: name}
	if u.ID != "" {
		o.AvatarURL = u.AvatarURL("")
	}
	return o
}
