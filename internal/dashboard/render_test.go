package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hostpanel/internal/hosting"
)

func TestChunkLines(t *testing.T) {
	lines := make([]string, 60)
	for i := range lines {
		lines[i] = fmt.Sprintf("• **application-%02d** (`%030d`)", i, i)
	}

	fields := ChunkLines("Apps", lines, FieldLimit)
	require.Greater(t, len(fields), 1)
	assert.Equal(t, "Apps", fields[0].Name)
	for _, f := range fields[1:] {
		assert.Equal(t, "Apps (cont.)", f.Name)
	}

	var rebuilt []string
	for _, f := range fields {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Value), FieldLimit)
		rebuilt = append(rebuilt, strings.Split(f.Value, "\n")...)
	}
	assert.Equal(t, lines, rebuilt)
}

func TestChunkLinesEdges(t *testing.T) {
	assert.Nil(t, ChunkLines("x", nil, FieldLimit))

	long := strings.Repeat("é", 1500)
	fields := ChunkLines("x", []string{"short", long}, FieldLimit)
	require.Len(t, fields, 2)
	assert.Equal(t, "short", fields[0].Value)
	assert.Equal(t, FieldLimit, utf8.RuneCountInString(fields[1].Value))
	assert.True(t, strings.HasSuffix(fields[1].Value, "…"))

	exact := []string{strings.Repeat("a", 499), strings.Repeat("b", 500)}
	fields = ChunkLines("x", exact, FieldLimit)
	require.Len(t, fields, 1)
	assert.Equal(t, FieldLimit, len(fields[0].Value))
}

func homeState() State {
	return State{
		Mode: ModeHome,
		Apps: []hosting.Application{
			{ID: "a1", Name: "Bot", Online: true},
			{ID: "a2", Name: "Site", Type: hosting.AppTypeSite},
		},
	}
}

func TestRenderHome(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Render(homeState(), ModeData{
		User:           &hosting.User{ID: "u1", Plan: "Platinum", PlanExpiresAt: &exp, UsingRAM: 512, TotalRAM: 1024},
		OwnerAvatarURL: "https://cdn/avatar.png",
	})

	assert.Equal(t, ColorPurple, p.Color)
	assert.Equal(t, "https://cdn/avatar.png", p.Thumbnail)
	assert.Contains(t, p.Footer, "Select an application")

	byName := fieldsByName(p)
	assert.Equal(t, "**Platinum**", byName["💎 Plan"])
	assert.Equal(t, fmt.Sprintf("<t:%d:f>", exp.Unix()), byName["🗓️ Expires"])
	assert.Equal(t, "🟩🟩🟩🟩🟩⬛⬛⬛⬛⬛", byName["🧠 RAM (512MB / 1024MB)"])
	assert.Contains(t, byName["📂 My applications (2)"], "🟢 **Bot** (`a1`)")
	assert.Contains(t, byName["📂 My applications (2)"], "🔴 **Site** (`a2`)")
}

func TestRenderHomeLifetimeAndEmpty(t *testing.T) {
	p := Render(State{Mode: ModeHome}, ModeData{User: &hosting.User{Plan: "Free"}})
	byName := fieldsByName(p)
	assert.Equal(t, "Lifetime", byName["🗓️ Expires"])
	assert.Equal(t, "No applications found.", byName["📂 My applications"])

	sel := p.Rows[0][0]
	assert.True(t, sel.Disabled)
	assert.Equal(t, "No applications found", sel.Placeholder)
}

func TestRenderHomeChunksLongLists(t *testing.T) {
	st := State{Mode: ModeHome}
	for i := 0; i < 80; i++ {
		st.Apps = append(st.Apps, hosting.Application{ID: fmt.Sprintf("%024d", i), Name: fmt.Sprintf("application number %d", i)})
	}
	p := Render(st, ModeData{})

	var chunks int
	for _, f := range p.Fields {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Value), FieldLimit)
		if strings.HasPrefix(f.Name, "📂 My applications (80)") {
			chunks++
		}
	}
	assert.Greater(t, chunks, 1)
	assert.Len(t, p.Rows[0][0].Options, MaxOptions)
}

func TestRenderStatus(t *testing.T) {
	started := time.Unix(1700000000, 0)
	st := State{
		SelectedAppID: "a1",
		Mode:          ModeStatus,
		Apps: []hosting.Application{{
			ID: "a1", Name: "Bot", Online: true, Language: "python", MainFile: "main.py",
			AutoDeployGit: "main", AutoRestart: false, RAMKilled: true, Type: hosting.AppTypeBot,
		}},
	}
	p := Render(st, ModeData{Status: &hosting.AppStatus{
		Container: "Online", CPU: "1.5%", MemoryUsing: "256MB", MemoryAvailable: "1GB",
		NetDown: "1MB", NetUp: "2MB", SSD: "30MB", StartedAt: &started,
	}})

	assert.Equal(t, "App: Bot", p.Title)
	assert.Equal(t, ColorGreen, p.Color)
	assert.Contains(t, p.Description, "`python`")
	assert.Contains(t, p.Description, "`main.py`")
	assert.Contains(t, p.Description, "`Bot`")

	byName := fieldsByName(p)
	assert.Equal(t, "**🟢 Online**", byName["📦 Container"])
	assert.Equal(t, "🟩🟩⬛⬛⬛⬛⬛⬛⬛⬛", byName["🧠 RAM (256MB / 1GB)"])
	assert.Equal(t, "<t:1700000000:R>", byName["🕒 Uptime"])
	assert.Equal(t, "Enabled ✅", byName["🔀 Git auto-deploy"])
	assert.Equal(t, "Disabled ❌", byName["🔄 Auto restart"])
	assert.Contains(t, byName, "⚠️ Critical alert")
}

func TestRenderStatusOffline(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeStatus, Apps: []hosting.Application{{ID: "a1", Name: "Bot", AutoDeployGit: "no"}}}
	p := Render(st, ModeData{Status: &hosting.AppStatus{Container: "Exited", OnlineSince: "3 days"}})

	assert.Equal(t, ColorRed, p.Color)
	byName := fieldsByName(p)
	assert.Equal(t, "**🔴 Exited**", byName["📦 Container"])
	assert.Equal(t, "🔴 Offline", byName["🕒 Uptime"])
	assert.Equal(t, "Disabled ❌", byName["🔀 Git auto-deploy"])
	assert.NotContains(t, byName, "⚠️ Critical alert")
}

func TestRenderLogs(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeLogs, Apps: []hosting.Application{{ID: "a1", Name: "Bot"}}}

	long := strings.Repeat("x", 1200) + "END"
	p := Render(st, ModeData{Logs: &hosting.Logs{Tail: long, URL: "https://logs/a1"}})
	assert.Contains(t, p.Description, "*(truncated)*")
	assert.Contains(t, p.Description, "END")
	assert.NotContains(t, p.Description, strings.Repeat("x", 1000))
	assert.Equal(t, "[Open the full log](https://logs/a1)", fieldsByName(p)["🔗 Full logs"])

	last := p.Rows[len(p.Rows)-1]
	require.Len(t, last, 1)
	assert.Equal(t, ControlLink, last[0].Kind)
	assert.Equal(t, "https://logs/a1", last[0].URL)

	p = Render(st, ModeData{Logs: &hosting.Logs{Tail: "ready ```"}, DashboardURL: "https://dash"})
	assert.NotContains(t, p.Description, "*(truncated)*")
	assert.Equal(t, 2, strings.Count(p.Description, "```"))
	assert.Equal(t, "[Open the full log](https://dash)", fieldsByName(p)["🔗 Full logs"])

	p = Render(st, ModeData{Logs: &hosting.Logs{}})
	assert.Contains(t, p.Description, "(no output)")
}

func TestRenderModerators(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeModerators, Apps: []hosting.Application{{ID: "a1", Name: "Bot"}}}

	p := Render(st, ModeData{})
	assert.Contains(t, p.Description, "No moderators")
	actions := p.Rows[3]
	assert.False(t, actions[0].Disabled)
	assert.True(t, actions[1].Disabled)
	assert.True(t, actions[2].Disabled)

	p = Render(st, ModeData{Moderators: []hosting.Moderator{
		{ID: "m1", Perms: hosting.NewPermSet(hosting.PermLogsApp, hosting.PermStartApp)},
		{ID: "m2"},
	}})
	value := fieldsByName(p)["Moderators (2)"]
	assert.Contains(t, value, "👤 `m1`: Perms: `start_app, logs_app`")
	assert.Contains(t, value, "👤 `m2`: no permissions")
	assert.False(t, p.Rows[3][1].Disabled)
}

func TestRenderControlsPerMode(t *testing.T) {
	base := State{SelectedAppID: "a1", Apps: []hosting.Application{{ID: "a1", Name: "Bot"}}}

	expect := map[Mode][]ActionKind{
		ModeControl: {ActionStart, ActionRestart, ActionStop},
		ModeTools:   {ActionBackup, ActionRAMForm, ActionRenameForm, ActionAvatarForm, ActionDeleteForm},
	}
	for m, kinds := range expect {
		st := base
		st.Mode = m
		p := Render(st, ModeData{})
		require.Len(t, p.Rows, 4, m.String())
		var got []ActionKind
		for _, c := range p.Rows[3] {
			got = append(got, c.Action)
		}
		assert.Equal(t, kinds, got, m.String())
	}

	for _, m := range []Mode{ModeStatus, ModeHome} {
		st := base
		st.Mode = m
		assert.Len(t, Render(st, ModeData{}).Rows, 3, m.String())
	}
}

func TestRenderActiveTab(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeTools, Apps: []hosting.Application{{ID: "a1"}}}
	p := Render(st, ModeData{})

	for _, c := range navControls(p) {
		if c.Arg == ModeTools.String() {
			assert.Equal(t, StyleSuccess, c.Style)
			assert.True(t, c.Disabled)
		} else {
			assert.False(t, c.Disabled, c.Arg)
		}
	}
	assert.True(t, p.Rows[0][0].Options[0].Default)
}

func TestRenderTabsNeedSelection(t *testing.T) {
	p := Render(homeState(), ModeData{})
	for _, c := range navControls(p) {
		if c.Arg == ModeHome.String() {
			continue
		}
		assert.True(t, c.Disabled, c.Arg)
	}
	assert.False(t, p.Rows[0][0].Disabled)
}

func TestRenderBusyDisablesEverything(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeControl, Busy: true, Apps: []hosting.Application{{ID: "a1"}}}
	for _, p := range []Panel{Render(st, ModeData{}), RenderProcessing(st, "Starting Bot")} {
		for _, row := range p.Rows {
			for _, c := range row {
				assert.True(t, c.Disabled, "%s/%s", c.Action, c.Arg)
			}
		}
	}
	assert.Equal(t, "⏳ Processing: Starting Bot...", RenderProcessing(st, "Starting Bot").Title)
	assert.Equal(t, ColorGold, RenderProcessing(st, "x").Color)
}

func TestRenderNotificationIsPrepended(t *testing.T) {
	st := homeState()
	st.Pending = &Notification{Title: "App started", Body: "Your app was started.", Severity: SeveritySuccess}

	p := Render(st, ModeData{User: &hosting.User{}})
	require.NotEmpty(t, p.Fields)
	assert.Equal(t, "✅ App started", p.Fields[0].Name)
	assert.Equal(t, "Your app was started.", p.Fields[0].Value)
}

func TestRenderError(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeControl, Busy: true, Apps: []hosting.Application{{ID: "a1"}}}
	p := RenderError(st, "Start", errors.New("Container crashed"))

	assert.Equal(t, "❌ Error: Start", p.Title)
	assert.Equal(t, ColorRed, p.Color)
	assert.Contains(t, p.Description, "Container crashed")

	require.Len(t, p.Rows, 4)
	retry := p.Rows[3]
	require.Len(t, retry, 1)
	assert.Equal(t, ActionRetry, retry[0].Action)
	assert.False(t, retry[0].Disabled)
	for _, c := range navControls(p) {
		if c.Arg != ModeControl.String() {
			assert.False(t, c.Disabled, c.Arg)
		}
	}
}

func TestRenderExpired(t *testing.T) {
	st := State{SelectedAppID: "a1", Mode: ModeLogs, Apps: []hosting.Application{{ID: "a1"}}}
	last := Render(st, ModeData{DashboardURL: "https://dash"})
	p := RenderExpired(last, "Use /panel to open a new one.")

	assert.Equal(t, "This panel expired. Use /panel to open a new one.", p.Footer)
	for _, row := range p.Rows {
		for _, c := range row {
			if c.Kind == ControlLink {
				assert.False(t, c.Disabled)
				continue
			}
			assert.True(t, c.Disabled)
		}
	}
	assert.False(t, last.Rows[1][0].Disabled, "original panel must not change")
}

func fieldsByName(p Panel) map[string]string {
	out := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		out[f.Name] = f.Value
	}
	return out
}

func navControls(p Panel) []Control {
	var out []Control
	for _, row := range p.Rows {
		for _, c := range row {
			if c.Action == ActionNavigate {
				out = append(out, c)
			}
		}
	}
	return out
}
