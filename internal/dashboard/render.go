package dashboard

import (
	"fmt"
	"strings"

	"github.com/zsiec/hostpanel/internal/hosting"
)

const (
	footerText = "HostPanel"
	homeFooter = "Select an application in the menu above. | " + footerText
	logTail    = 1000
)

// ModeData is whatever the active tab fetched for this render.
type ModeData struct {
	User       *hosting.User
	Status     *hosting.AppStatus
	Logs       *hosting.Logs
	Moderators []hosting.Moderator

	OwnerAvatarURL string
	DashboardURL   string // full-logs fallback
}

// Render maps a state snapshot and fetched data to a panel. It is pure.
func Render(st State, data ModeData) Panel {
	var p Panel
	app, ok := st.Selected()
	if !ok {
		p = renderHome(st, data)
	} else {
		switch st.Mode {
		case ModeHome:
			p = renderHome(st, data)
		case ModeStatus:
			p = renderStatus(app, data)
		case ModeControl:
			p = renderControl(app)
		case ModeLogs:
			p = renderLogs(app, data)
		case ModeTools:
			p = renderTools(app)
		case ModeModerators:
			p = renderModerators(app, data)
		default:
			p = renderHome(st, data)
		}
	}

	if st.Pending != nil {
		p.Fields = append(notificationFields(*st.Pending), p.Fields...)
	}
	p.Rows = controls(st, data)
	return p
}

// RenderProcessing is the placeholder shown while a remote call runs.
func RenderProcessing(st State, label string) Panel {
	st.Busy = true
	return Panel{
		Title:       fmt.Sprintf("⏳ Processing: %s...", label),
		Description: "Hang on while the hosting provider handles the request.",
		Color:       ColorGold,
		Footer:      footerText,
		Rows:        controls(st, ModeData{}),
	}
}

// RenderError is the persistent failure panel. Navigation stays usable and a
// retry control replays the failed action.
func RenderError(st State, label string, err error) Panel {
	st.Busy = false
	rows := controls(st, ModeData{})
	// only the select and the two navigation rows
	if len(rows) > 3 {
		rows = rows[:3]
	}
	rows = append(rows, ControlRow{
		{Kind: ControlButton, Action: ActionRetry, Label: "🔁 Try again", Style: StylePrimary},
	})
	return Panel{
		Title:       fmt.Sprintf("❌ Error: %s", label),
		Description: codeBlock(Truncate(err.Error(), FieldLimit)),
		Color:       ColorRed,
		Footer:      footerText,
		Rows:        rows,
	}
}

// RenderExpired freezes the last panel once its session is gone.
func RenderExpired(last Panel, hint string) Panel {
	p := last.Disabled()
	p.Footer = "This panel expired. " + hint
	return p
}

func renderHome(st State, data ModeData) Panel {
	p := Panel{
		Title:     "💜 Account overview",
		Color:     ColorPurple,
		Thumbnail: data.OwnerAvatarURL,
		Footer:    homeFooter,
	}

	if u := data.User; u != nil {
		expiry := "Lifetime"
		if u.PlanExpiresAt != nil {
			expiry = fmt.Sprintf("<t:%d:f>", u.PlanExpiresAt.Unix())
		}
		p.Fields = append(p.Fields,
			Field{Name: "🆔 User", Value: code(u.ID), Inline: true},
			Field{Name: "💎 Plan", Value: "**" + orDash(u.Plan) + "**", Inline: true},
			Field{Name: "🗓️ Expires", Value: expiry, Inline: true},
			Field{
				Name:  fmt.Sprintf("🧠 RAM (%dMB / %dMB)", u.UsingRAM, u.TotalRAM),
				Value: Bar(mbString(u.UsingRAM), mbString(u.TotalRAM)),
			},
		)
	}

	if len(st.Apps) == 0 {
		p.Fields = append(p.Fields, Field{Name: "📂 My applications", Value: "No applications found."})
		return p
	}
	lines := make([]string, 0, len(st.Apps))
	for _, a := range st.Apps {
		lines = append(lines, fmt.Sprintf("%s **%s** (%s)", onlineDot(a.Online), a.Name, code(a.ID)))
	}
	p.Fields = append(p.Fields, ChunkLines(fmt.Sprintf("📂 My applications (%d)", len(st.Apps)), lines, FieldLimit)...)
	return p
}

func renderStatus(app hosting.Application, data ModeData) Panel {
	online := app.Online
	if data.Status != nil {
		online = data.Status.Online()
	}
	p := Panel{
		Title:     "App: " + app.Name,
		Color:     ColorRed,
		Thumbnail: app.AvatarURL,
		Footer:    footerText,
		Description: strings.Join([]string{
			"**🆔 ID:** " + code(app.ID),
			"**🤖 Type:** " + code(app.Type.String()),
			"**💬 Language:** " + code(orDash(app.Language)),
			"**📂 Main file:** " + code(orDash(app.MainFile)),
		}, "\n"),
	}
	if online {
		p.Color = ColorGreen
	}

	if st := data.Status; st != nil {
		container := "**🟢 Online**"
		if !online {
			container = "**🔴 " + orDash(st.Container) + "**"
		}
		uptime := "🔴 Offline"
		if online {
			switch {
			case st.StartedAt != nil:
				uptime = fmt.Sprintf("<t:%d:R>", st.StartedAt.Unix())
			case st.OnlineSince != "":
				uptime = st.OnlineSince
			default:
				uptime = "🟢 Online"
			}
		}
		p.Fields = append(p.Fields,
			Field{Name: "📦 Container", Value: container, Inline: true},
			Field{Name: "⚙️ CPU", Value: code(orDash(st.CPU)), Inline: true},
			Field{
				Name:  fmt.Sprintf("🧠 RAM (%s / %s)", orDash(st.MemoryUsing), orDash(st.MemoryAvailable)),
				Value: Bar(st.MemoryUsing, st.MemoryAvailable),
			},
			Field{Name: "🌐 Network", Value: code(fmt.Sprintf("⬇️ %s | ⬆️ %s", orDash(st.NetDown), orDash(st.NetUp))), Inline: true},
			Field{Name: "💾 SSD", Value: code(orDash(st.SSD)), Inline: true},
			Field{Name: "🕒 Uptime", Value: uptime, Inline: true},
		)
	}

	p.Fields = append(p.Fields,
		Field{Name: "🔀 Git auto-deploy", Value: flag(app.GitAutoDeploy()), Inline: true},
		Field{Name: "🔄 Auto restart", Value: flag(app.AutoRestart), Inline: true},
	)
	if app.RAMKilled {
		p.Fields = append(p.Fields, Field{
			Name:  "⚠️ Critical alert",
			Value: "The app was restarted because it ran out of RAM.",
		})
	}
	return p
}

func renderControl(app hosting.Application) Panel {
	state := "🔴 Offline"
	if app.Online {
		state = "🟢 Online"
	}
	return Panel{
		Title:       "🎮 Control: " + app.Name,
		Description: "Start, restart or stop the application.",
		Color:       ColorBlue,
		Thumbnail:   app.AvatarURL,
		Footer:      footerText,
		Fields:      []Field{{Name: "State", Value: state, Inline: true}},
	}
}

func renderLogs(app hosting.Application, data ModeData) Panel {
	p := Panel{
		Title:  "📜 Terminal: " + app.Name,
		Color:  ColorDark,
		Footer: footerText,
	}

	tail := ""
	url := data.DashboardURL
	if data.Logs != nil {
		tail = data.Logs.Tail
		if data.Logs.URL != "" {
			url = data.Logs.URL
		}
	}
	tail = strings.TrimSpace(tail)
	if tail == "" {
		p.Description = codeBlock("(no output)")
	} else {
		cut, truncated := tailRunes(tail, logTail)
		p.Description = codeBlock(cut)
		if truncated {
			p.Description += "\n*(truncated)*"
		}
	}
	if url != "" {
		p.Fields = append(p.Fields, Field{Name: "🔗 Full logs", Value: fmt.Sprintf("[Open the full log](%s)", url)})
	}
	return p
}

func renderTools(app hosting.Application) Panel {
	return Panel{
		Title:       "🛠️ Toolbox: " + app.Name,
		Description: "Maintenance utilities for this application.",
		Color:       ColorBlue,
		Thumbnail:   app.AvatarURL,
		Footer:      footerText,
		Fields: []Field{
			{Name: "💾 Backup", Value: "Download the source code.", Inline: true},
			{Name: "🧠 RAM", Value: "Change the RAM amount.", Inline: true},
			{Name: "✏️ Rename", Value: "Change the display name.", Inline: true},
			{Name: "🖼️ Avatar", Value: "Change the avatar URL.", Inline: true},
			{Name: "🗑️ Delete", Value: "Remove the application for good.", Inline: true},
			{Name: "📦 Update", Value: "Use `/commit` to send new files.", Inline: true},
		},
	}
}

func renderModerators(app hosting.Application, data ModeData) Panel {
	p := Panel{
		Title:     "👥 Team: " + app.Name,
		Color:     ColorPurple,
		Thumbnail: app.AvatarURL,
		Footer:    footerText,
	}
	if len(data.Moderators) == 0 {
		p.Description = "No moderators have been added to this application."
		return p
	}
	lines := make([]string, 0, len(data.Moderators))
	for _, m := range data.Moderators {
		perms := "no permissions"
		if m.Perms.Len() > 0 {
			perms = "Perms: " + code(strings.Join(m.Perms.Strings(), ", "))
		}
		lines = append(lines, fmt.Sprintf("👤 %s: %s", code(m.ID), perms))
	}
	p.Fields = ChunkLines(fmt.Sprintf("Moderators (%d)", len(data.Moderators)), lines, FieldLimit)
	return p
}

func notificationFields(n Notification) []Field {
	title := n.Severity.Icon() + " " + n.Title
	body := n.Body
	if body == "" {
		body = "\u200b"
	}
	return ChunkLines(title, strings.Split(body, "\n"), FieldLimit)
}

func controls(st State, data ModeData) []ControlRow {
	busy := st.Busy
	_, selected := st.Selected()

	rows := []ControlRow{{appSelect(st, busy)}}

	tab := func(m Mode) Control {
		c := Control{
			Kind:     ControlButton,
			Action:   ActionNavigate,
			Arg:      m.String(),
			Label:    m.Label(),
			Style:    StyleSecondary,
			Disabled: busy || (m != ModeHome && !selected),
		}
		if m == st.Mode {
			c.Style = StyleSuccess
			c.Disabled = true
		}
		return c
	}
	rows = append(rows,
		ControlRow{tab(ModeHome), tab(ModeStatus), tab(ModeControl), tab(ModeLogs)},
		ControlRow{tab(ModeTools), tab(ModeModerators), {
			Kind: ControlButton, Action: ActionRefresh, Label: "🔄 Refresh", Style: StylePrimary, Disabled: busy,
		}},
	)

	if !selected {
		return rows
	}
	button := func(kind ActionKind, label string, style ButtonStyle) Control {
		return Control{Kind: ControlButton, Action: kind, Label: label, Style: style, Disabled: busy}
	}
	switch st.Mode {
	case ModeControl:
		rows = append(rows, ControlRow{
			button(ActionStart, "▶️ Start", StyleSuccess),
			button(ActionRestart, "🔄 Restart", StylePrimary),
			button(ActionStop, "⏹️ Stop", StyleDanger),
		})
	case ModeTools:
		rows = append(rows, ControlRow{
			button(ActionBackup, "💾 Backup", StyleSecondary),
			button(ActionRAMForm, "🧠 RAM", StyleSecondary),
			button(ActionRenameForm, "✏️ Rename", StyleSecondary),
			button(ActionAvatarForm, "🖼️ Avatar", StyleSecondary),
			button(ActionDeleteForm, "🗑️ Delete", StyleDanger),
		})
	case ModeModerators:
		edit := button(ActionModEditPick, "✏️ Edit", StylePrimary)
		remove := button(ActionModRemovePick, "➖ Remove", StyleDanger)
		if len(data.Moderators) == 0 {
			edit.Disabled = true
			remove.Disabled = true
		}
		rows = append(rows, ControlRow{button(ActionModAddForm, "➕ Add", StyleSuccess), edit, remove})
	case ModeLogs:
		url := data.DashboardURL
		if data.Logs != nil && data.Logs.URL != "" {
			url = data.Logs.URL
		}
		if url != "" {
			rows = append(rows, ControlRow{{Kind: ControlLink, Label: "🔗 Full logs", URL: url}})
		}
	}
	return rows
}

func appSelect(st State, busy bool) Control {
	c := Control{
		Kind:        ControlSelect,
		Action:      ActionSelectApp,
		Placeholder: "Select an application...",
		MinValues:   1,
		MaxValues:   1,
		Disabled:    busy,
	}
	if len(st.Apps) == 0 {
		c.Placeholder = "No applications found"
		c.Options = []Option{{Label: "No applications", Value: "none"}}
		c.Disabled = true
		return c
	}
	for i, a := range st.Apps {
		if i == MaxOptions {
			break
		}
		c.Options = append(c.Options, Option{
			Label:       Truncate(a.Name, 100),
			Value:       a.ID,
			Description: "ID: " + a.ID,
			Emoji:       onlineDot(a.Online),
			Default:     a.ID == st.SelectedAppID,
		})
	}
	return c
}

func onlineDot(online bool) string {
	if online {
		return "🟢"
	}
	return "🔴"
}

func flag(on bool) string {
	if on {
		return "Enabled ✅"
	}
	return "Disabled ❌"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func code(s string) string {
	return "`" + s + "`"
}

func codeBlock(s string) string {
	return "```\n" + strings.ReplaceAll(s, "```", "`\u200b``") + "\n```"
}
