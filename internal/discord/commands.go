package discord

import (
	"github.com/bwmarrin/discordgo"
)

const (
	cmdCommit = "commit"
	cmdUpload = "upload"

	optAppID = "app_id"
	optFile  = "file"
)

// commands are the slash commands registered on start. The panel command
// name is configurable; commit and upload are limited to administrators by
// default.
func commands(panelName string) []*discordgo.ApplicationCommand {
	var admin int64 = discordgo.PermissionAdministrator
	dm := false

	return []*discordgo.ApplicationCommand{
		{
			Name:        panelName,
			Description: "Open the hosting dashboard",
		},
		{
			Name:                     cmdCommit,
			Description:              "Send a .zip update to one of your applications",
			DefaultMemberPermissions: &admin,
			DMPermission:             &dm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optAppID,
					Description: "Application ID",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        optFile,
					Description: ".zip archive with the new files",
					Required:    true,
				},
			},
		},
		{
			Name:                     cmdUpload,
			Description:              "Upload a new application from a .zip archive",
			DefaultMemberPermissions: &admin,
			DMPermission:             &dm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        optFile,
					Description: ".zip archive of the application",
					Required:    true,
				},
			},
		},
	}
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// attachmentOption resolves the attachment passed as option name.
func attachmentOption(data discordgo.ApplicationCommandInteractionData, name string) *discordgo.MessageAttachment {
	opt, ok := optionMap(data.Options)[name]
	if !ok || data.Resolved == nil {
		return nil
	}
	id, ok := opt.Value.(string)
	if !ok {
		return nil
	}
	return data.Resolved.Attachments[id]
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	opt, ok := optionMap(data.Options)[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return opt.StringValue()
}
