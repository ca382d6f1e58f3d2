package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/zsiec/hostpanel/internal/dashboard"
	"github.com/zsiec/hostpanel/internal/logger"
)

// api is the part of *discordgo.Session the presenter drives.
type api interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// panelRef locates the public message a dashboard lives in.
type panelRef struct {
	ChannelID string
	MessageID string
	// Anchor is the command that created the message; its token can still
	// edit the message when a channel edit is refused.
	Anchor *discordgo.Interaction
}

// presenter answers one interaction on behalf of a dashboard session.
// Every interaction must be acknowledged exactly once; later output goes
// through edits and followups.
type presenter struct {
	api     api
	i       *discordgo.Interaction
	session string
	ref     *panelRef
	log     logger.Logger

	// anchor is set for the command that opens a panel: its original
	// response is the panel.
	anchor   bool
	onAnchor func(*discordgo.Message)

	mu        sync.Mutex
	responded bool
	replaced  bool
}

func newPresenter(a api, i *discordgo.Interaction, session string, ref *panelRef, log logger.Logger) *presenter {
	return &presenter{api: a, i: i, session: session, ref: ref, log: log}
}

// fromPanel reports whether the interaction came from a control on the
// panel message itself.
func (p *presenter) fromPanel() bool {
	if p.i.Message == nil {
		return false
	}
	if p.ref != nil {
		return p.i.Message.ID == p.ref.MessageID
	}
	return p.i.Message.Flags&discordgo.MessageFlagsEphemeral == 0
}

// fromPrompt reports whether the interaction came from a private prompt.
func (p *presenter) fromPrompt() bool {
	return p.i.Message != nil && !p.fromPanel() && p.i.Message.Flags&discordgo.MessageFlagsEphemeral != 0
}

// acknowledge defers the response so slow actions do not time out.
func (p *presenter) acknowledge() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.responded {
		return nil
	}
	err := p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
	if err == nil {
		p.responded = true
	}
	return err
}

// ShowPanel replaces the dashboard message.
func (p *presenter) ShowPanel(_ context.Context, panel dashboard.Panel) error {
	embed := panelEmbed(panel)
	cs, err := components(p.session, panel.Rows)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.anchor || p.fromPanel():
		if !p.responded {
			err := p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseUpdateMessage,
				Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}, Components: cs},
			})
			if err == nil {
				p.responded = true
			}
			return err
		}
		msg, err := p.api.InteractionResponseEdit(p.i, &discordgo.WebhookEdit{
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &cs,
		})
		if err == nil && p.anchor && p.onAnchor != nil && msg != nil {
			p.onAnchor(msg)
		}
		return err
	case p.ref != nil:
		return editPanel(p.api, p.ref, embed, cs, p.log)
	default:
		// Nowhere to draw; the session has no known message.
		p.log.WithField("session_id", p.session).Debug("Dropping panel update without a target message")
		return nil
	}
}

// editPanel edits the stored panel message, falling back to the token of
// the command that created it.
func editPanel(a api, ref *panelRef, embed *discordgo.MessageEmbed, cs []discordgo.MessageComponent, log logger.Logger) error {
	if ref.MessageID != "" {
		edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
		edit.Embeds = &[]*discordgo.MessageEmbed{embed}
		edit.Components = &cs
		_, err := a.ChannelMessageEditComplex(edit)
		if err == nil || ref.Anchor == nil {
			return err
		}
		log.WithError(err).Debug("Channel edit refused, editing through the command token")
	}
	if ref.Anchor == nil {
		return errors.New("panel has no message to edit")
	}
	_, err := a.InteractionResponseEdit(ref.Anchor, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &cs,
	})
	return err
}

// Notify sends a private message to the user who acted.
func (p *presenter) Notify(_ context.Context, n dashboard.Notification) error {
	embed := notificationEmbed(n)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.private(embed, nil)
}

// private sends an ephemeral message: the first response when nothing has
// been sent yet, otherwise a followup. Caller holds mu.
func (p *presenter) private(embed *discordgo.MessageEmbed, cs []discordgo.MessageComponent) error {
	if !p.responded {
		err := p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: cs,
				Flags:      discordgo.MessageFlagsEphemeral,
			},
		})
		if err == nil {
			p.responded = true
		}
		return err
	}
	_, err := p.api.FollowupMessageCreate(p.i, true, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: cs,
		Flags:      discordgo.MessageFlagsEphemeral,
	})
	return err
}

// OpenForm shows a modal. A modal has to be the first response, so a form
// asked for after an acknowledgement is reported instead.
func (p *presenter) OpenForm(ctx context.Context, f dashboard.Form) error {
	data, err := modal(p.session, f)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if !p.responded {
		err = p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: data})
		if err == nil {
			p.responded = true
		}
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	return p.Notify(ctx, dashboard.Notification{
		Title:    "Form unavailable",
		Body:     "This form could not be opened. Press the button again.",
		Severity: dashboard.SeverityWarning,
	})
}

// Prompt asks the user privately. A prompt answering another prompt takes
// its place.
func (p *presenter) Prompt(_ context.Context, pr dashboard.Prompt) error {
	embed, cs, err := promptMessage(p.session, pr)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.fromPrompt() {
		return p.private(embed, cs)
	}
	p.replaced = true
	if !p.responded {
		err := p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}, Components: cs},
		})
		if err == nil {
			p.responded = true
		}
		return err
	}
	_, err = p.api.InteractionResponseEdit(p.i, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &cs,
	})
	return err
}

// settle runs after a dispatch. It acknowledges an interaction nothing
// answered and closes a prompt that was acted on without being replaced.
func (p *presenter) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.responded {
		if err := p.api.InteractionRespond(p.i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}); err != nil {
			p.log.WithError(err).Debug("Failed to acknowledge interaction")
			return
		}
		p.responded = true
	}
	if !p.fromPrompt() || p.replaced {
		return
	}
	done := "Done. The panel above shows the result."
	empty := []discordgo.MessageComponent{}
	empties := []*discordgo.MessageEmbed{}
	if _, err := p.api.InteractionResponseEdit(p.i, &discordgo.WebhookEdit{
		Content:    &done,
		Embeds:     &empties,
		Components: &empty,
	}); err != nil {
		p.log.WithError(err).Debug("Failed to close prompt")
	}
}
