package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/hosting/hostingtest"
)

func TestOpenRendersHome(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	_, rec := openSession(t, fake)

	p := rec.lastPanel(t)
	assert.Equal(t, "💜 Account overview", p.Title)
	assert.Contains(t, fieldsByName(p)["📂 My applications (2)"], "**Bot**")
	assert.Len(t, p.Rows[0][0].Options, 2)
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodListApplications))
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodUserInfo))
}

func TestSelectApp(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)

	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	st := s.Snapshot()
	assert.Equal(t, "a1", st.SelectedAppID)
	assert.Equal(t, ModeStatus, st.Mode)
	assert.Equal(t, "App: Bot", rec.lastPanel(t).Title)
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodStatus))
}

func TestSelectAbsentAppChangesNothing(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	before := s.Snapshot()
	panels := rec.panelCount()

	err := s.Dispatch(context.Background(), rec, withValues(ActionSelectApp, "zz"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, panels, rec.panelCount())
	assert.Equal(t, "Invalid input", rec.lastNote(t).Title)
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodListApplications))
}

func TestNavigateWithoutSelectionWarns(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	before := s.Snapshot()

	err := s.Dispatch(context.Background(), rec, withArg(ActionNavigate, "logs"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, "Select an application first.", rec.lastNote(t).Body)
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodLogs))

	err = s.Dispatch(context.Background(), rec, withArg(ActionNavigate, "settings"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestNavigateTabs(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetLogs("a1", hosting.Logs{Tail: "booting\nready", URL: "https://logs/a1"})
	fake.SetModerators("a1", hosting.Moderator{ID: modA, Perms: hosting.NewPermSet(hosting.PermLogsApp)})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	dispatch(t, s, rec, withArg(ActionNavigate, "logs"))
	assert.Contains(t, rec.lastPanel(t).Description, "ready")

	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))
	assert.Contains(t, fieldsByName(rec.lastPanel(t))["Moderators (1)"], modA)

	dispatch(t, s, rec, withArg(ActionNavigate, "home"))
	st := s.Snapshot()
	assert.Equal(t, ModeHome, st.Mode)
	assert.Empty(t, st.SelectedAppID)
}

func TestVanishedSelectionFallsBackHome(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "tools"))

	fake.RemoveApp("a1")
	dispatch(t, s, rec, act(ActionRefresh))

	st := s.Snapshot()
	assert.Equal(t, ModeHome, st.Mode)
	assert.Empty(t, st.SelectedAppID)

	p := rec.lastPanel(t)
	assert.Equal(t, 1, notificationCount(p))
	assert.Equal(t, "⚠️ Application unavailable", p.Fields[0].Name)

	dispatch(t, s, rec, act(ActionRefresh))
	assert.Equal(t, 0, notificationCount(rec.lastPanel(t)))
}

func TestConcurrentDispatchIsRejected(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "control"))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fake.OnCall(hostingtest.MethodRestart, func(context.Context) {
		once.Do(func() { close(entered) })
		<-release
	})

	first := make(chan error, 1)
	go func() {
		first <- s.Dispatch(context.Background(), rec, act(ActionRestart))
	}()
	<-entered

	// the placeholder is up and nothing on it can be pressed
	processing := rec.lastPanel(t)
	assert.True(t, strings.HasPrefix(processing.Title, "⏳ Processing"))
	for _, row := range processing.Rows {
		for _, c := range row {
			assert.True(t, c.Disabled)
		}
	}

	for _, kind := range []ActionKind{ActionRestart, ActionStop, ActionDeleteSubmit} {
		err := s.Dispatch(context.Background(), rec, act(kind))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusy), kind)
		assert.Equal(t, "Please wait", rec.lastNote(t).Title)
	}
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodRestart))

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodRestart))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodStop))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodDeleteApplication))
	assert.Equal(t, "✅ App restarted", rec.lastPanel(t).Fields[0].Name)
}

func TestStartSuccess(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "control"))

	dispatch(t, s, rec, act(ActionStart))

	assert.Equal(t, ModeStatus, s.Snapshot().Mode)
	p := rec.lastPanel(t)
	assert.Equal(t, "✅ App started", p.Fields[0].Name)
	assert.Equal(t, "Your app was started.", p.Fields[0].Value)
	app, _ := fake.App("a1")
	assert.True(t, app.Online)
}

func TestAlreadyInStateIsAWarning(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a2"))

	dispatch(t, s, rec, act(ActionStart))

	p := rec.lastPanel(t)
	assert.False(t, strings.HasPrefix(p.Title, "❌"))
	assert.Equal(t, "⚠️ Nothing to do", p.Fields[0].Name)
	assert.Contains(t, p.Fields[0].Value, "already online")
	assert.False(t, s.Snapshot().Busy)
}

func TestRemoteFailureShowsErrorPanelAndRetries(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a2"))
	dispatch(t, s, rec, withArg(ActionNavigate, "control"))

	fake.Fail(hostingtest.MethodStop, &hosting.APIError{StatusCode: 500, Status: "error", Message: "Container crashed"})
	err := s.Dispatch(context.Background(), rec, act(ActionStop))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteFailure))

	p := rec.lastPanel(t)
	assert.Equal(t, "❌ Error: Stop", p.Title)
	assert.Contains(t, p.Description, "Container crashed")
	assert.False(t, s.Snapshot().Busy)
	assert.Equal(t, ActionRetry, p.Rows[len(p.Rows)-1][0].Action)
	for _, c := range navControls(p) {
		if c.Arg != ModeControl.String() {
			assert.False(t, c.Disabled, c.Arg)
		}
	}

	fake.Fail(hostingtest.MethodStop, nil)
	dispatch(t, s, rec, act(ActionRetry))
	assert.Equal(t, 2, fake.Calls(hostingtest.MethodStop))
	assert.Equal(t, "✅ App stopped", rec.lastPanel(t).Fields[0].Name)
}

func TestFetchFailureRendersErrorPanel(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	fake.Fail(hostingtest.MethodLogs, errors.New("logs unavailable"))
	err := s.Dispatch(context.Background(), rec, withArg(ActionNavigate, "logs"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteFailure))
	assert.Equal(t, "❌ Error: Loading logs", rec.lastPanel(t).Title)

	fake.Fail(hostingtest.MethodLogs, nil)
	dispatch(t, s, rec, act(ActionRetry))
	assert.Equal(t, "📜 Terminal: Bot", rec.lastPanel(t).Title)
}

func TestRefreshFallsBackToCache(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)

	fake.Fail(hostingtest.MethodListApplications, errors.New("gateway timeout"))
	dispatch(t, s, rec, act(ActionRefresh))

	p := rec.lastPanel(t)
	assert.Equal(t, "⚠️ Showing cached data", p.Fields[0].Name)
	assert.Contains(t, p.Fields[0].Value, "gateway timeout")
	assert.Len(t, p.Rows[0][0].Options, 2)
	assert.Len(t, s.Snapshot().Apps, 2)
}

func TestRAMResize(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "tools"))

	dispatch(t, s, rec, act(ActionRAMForm))
	form := rec.lastForm(t)
	assert.Equal(t, ActionRAMSubmit, form.Submit)
	assert.Equal(t, "a1", form.Arg)

	for _, bad := range []string{"abc", "1", "123456", ""} {
		err := s.Dispatch(context.Background(), rec, fill(form, FieldRAM, bad))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), bad)
		assert.Equal(t, "Invalid input", rec.lastNote(t).Title)
	}
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodResizeRAM))
	assert.Equal(t, ModeTools, s.Snapshot().Mode)

	dispatch(t, s, rec, fill(form, FieldRAM, "512"))
	app, _ := fake.App("a1")
	assert.Equal(t, 512, app.RAM)
	assert.True(t, app.Online)
	assert.Equal(t, 1, fake.Calls(hostingtest.MethodStart))

	p := rec.lastPanel(t)
	assert.Equal(t, "✅ RAM updated", p.Fields[0].Name)
	body := strings.Join(strings.Split(p.Fields[0].Value, "\n"), " ")
	assert.Contains(t, body, "Requested: **512MB**")
	assert.Contains(t, body, "RAM changed to 512")
	assert.NotContains(t, body, "ramMB")
	assert.Contains(t, body, "started again")
}

func TestRAMResizeRestartFailureIsNotFatal(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	fake.Fail(hostingtest.MethodStart, errors.New("no capacity"))
	dispatch(t, s, rec, bound(withField(ActionRAMSubmit, FieldRAM, "1024"), "a1"))

	p := rec.lastPanel(t)
	assert.Equal(t, "✅ RAM updated", p.Fields[0].Name)
	assert.Contains(t, p.Fields[0].Value, "restart failed: no capacity")
	assert.False(t, strings.HasPrefix(p.Title, "❌"))
}

func TestBackupLinkIsPrivate(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	dispatch(t, s, rec, act(ActionBackup))

	note := rec.lastNote(t)
	assert.Equal(t, "Backup ready", note.Title)
	assert.Contains(t, note.Body, "https://backups.example.test/a1.zip")

	p := rec.lastPanel(t)
	assert.Equal(t, "✅ Backup generated", p.Fields[0].Name)
	assert.NotContains(t, p.Fields[0].Value, "https://")
}

func TestDeleteRequiresExactID(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "tools"))
	before := s.Snapshot()

	err := s.Dispatch(context.Background(), rec, bound(withField(ActionDeleteSubmit, FieldConfirm, "A1"), "a1"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodDeleteApplication))
	assert.Equal(t, before, s.Snapshot())

	dispatch(t, s, rec, bound(withField(ActionDeleteSubmit, FieldConfirm, "a1"), "a1"))
	st := s.Snapshot()
	assert.Equal(t, ModeHome, st.Mode)
	assert.Empty(t, st.SelectedAppID)
	_, exists := fake.App("a1")
	assert.False(t, exists)

	p := rec.lastPanel(t)
	assert.Equal(t, 1, notificationCount(p))
	assert.Equal(t, "✅ Application deleted", p.Fields[0].Name)
	assert.Len(t, p.Rows[0][0].Options, 1)
}

func TestDeleteFailureKeepsSelection(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "tools"))

	fake.Fail(hostingtest.MethodDeleteApplication, &hosting.APIError{StatusCode: 403, Message: "You cannot delete this app"})
	err := s.Dispatch(context.Background(), rec, bound(withField(ActionDeleteSubmit, FieldConfirm, "a1"), "a1"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemoteFailure))

	st := s.Snapshot()
	assert.Equal(t, "a1", st.SelectedAppID)
	assert.Equal(t, ModeTools, st.Mode)
	assert.False(t, st.Busy)
	assert.Contains(t, rec.lastPanel(t).Description, "You cannot delete this app")
}

func TestRenameIsOptimistic(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "tools"))

	dispatch(t, s, rec, act(ActionRenameForm))
	form := rec.lastForm(t)
	assert.Equal(t, "Bot", form.Fields[0].Value)

	lists := fake.Calls(hostingtest.MethodListApplications)
	dispatch(t, s, rec, fill(form, FieldName, "Shiny Bot"))

	assert.Equal(t, 1, fake.Calls(hostingtest.MethodApplicationInfo))
	assert.Equal(t, lists, fake.Calls(hostingtest.MethodListApplications), "re-render must not refetch")
	assert.Equal(t, "🛠️ Toolbox: Shiny Bot", rec.lastPanel(t).Title)
	assert.Equal(t, "Shiny Bot", rec.lastPanel(t).Rows[0][0].Options[0].Label)

	app, _ := fake.App("a1")
	assert.Equal(t, "Shiny Bot", app.Name)
	assert.Equal(t, "https://cdn/bot.png", app.AvatarURL, "avatar passes through")

	dispatch(t, s, rec, act(ActionRefresh))
	assert.Equal(t, lists+1, fake.Calls(hostingtest.MethodListApplications))
	assert.Equal(t, "🛠️ Toolbox: Shiny Bot", rec.lastPanel(t).Title)
}

func TestAvatarChangeKeepsName(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	dispatch(t, s, rec, act(ActionAvatarForm))
	form := rec.lastForm(t)

	err := s.Dispatch(context.Background(), rec, fill(form, FieldAvatar, "not-a-url"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodUpdateProfile))

	dispatch(t, s, rec, fill(form, FieldAvatar, "https://cdn/new.png"))
	app, _ := fake.App("a1")
	assert.Equal(t, "Bot", app.Name)
	assert.Equal(t, "https://cdn/new.png", app.AvatarURL)
	assert.Equal(t, "https://cdn/new.png", rec.lastPanel(t).Thumbnail)
}

func TestAddModerator(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))

	dispatch(t, s, rec, act(ActionModAddForm))
	form := rec.lastForm(t)
	assert.Equal(t, ActionModAddID, form.Submit)

	err := s.Dispatch(context.Background(), rec, fill(form, FieldModID, "12"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	dispatch(t, s, rec, fill(form, FieldModID, modA))
	prompt := rec.lastPrompt(t)
	require.NotNil(t, prompt.Select)
	assert.Equal(t, ActionModAddPerms, prompt.Select.Action)
	assert.Equal(t, modA+"@a1", prompt.Select.Arg)
	assert.Equal(t, 1, prompt.Select.MinValues)

	pick := choose(prompt.Select)
	err = s.Dispatch(context.Background(), rec, pick)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodAddModerator))

	pick.Values = []string{"logs_app", "start_app"}
	dispatch(t, s, rec, pick)
	mods := fake.Moderators("a1")
	require.Len(t, mods, 1)
	assert.True(t, mods[0].Perms.Equal(hosting.NewPermSet(hosting.PermStartApp, hosting.PermLogsApp)))
	assert.Equal(t, ModeModerators, s.Snapshot().Mode)
	assert.Equal(t, "✅ Moderator added", rec.lastPanel(t).Fields[0].Name)
}

func TestEditModeratorReplacesPermissions(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1", hosting.Moderator{ID: modA, Perms: hosting.NewPermSet(hosting.PermStartApp, hosting.PermLogsApp)})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))

	dispatch(t, s, rec, act(ActionModEditPick))
	pick := rec.lastPrompt(t)
	require.NotNil(t, pick.Select)
	require.Len(t, pick.Select.Options, 1)
	assert.Equal(t, 1, pick.Select.MaxValues)

	dispatch(t, s, rec, choose(pick.Select, modA))
	perms := rec.lastPrompt(t).Select
	require.NotNil(t, perms)
	checked := map[string]bool{}
	for _, o := range perms.Options {
		checked[o.Value] = o.Default
	}
	assert.True(t, checked["start_app"])
	assert.True(t, checked["logs_app"])
	assert.False(t, checked["backup_app"])

	dispatch(t, s, rec, choose(perms, "backup_app"))

	mods := fake.Moderators("a1")
	require.Len(t, mods, 1)
	assert.True(t, mods[0].Perms.Equal(hosting.NewPermSet(hosting.PermBackupApp)))
}

func TestEditModeratorWithoutTeam(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	err := s.Dispatch(context.Background(), rec, act(ActionModEditPick))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, rec.lastNote(t).Body, "no moderators")
}

func TestBatchRemovalReportsEveryID(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1",
		hosting.Moderator{ID: modA},
		hosting.Moderator{ID: modB},
		hosting.Moderator{ID: modC},
	)
	fake.FailFor(hostingtest.MethodDeleteModerator, modB, &hosting.APIError{StatusCode: 403, Message: "Missing access"})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))

	dispatch(t, s, rec, act(ActionModRemovePick))
	sel := rec.lastPrompt(t).Select
	require.NotNil(t, sel)
	assert.Equal(t, 0, sel.MinValues)
	assert.Equal(t, 3, sel.MaxValues)

	dispatch(t, s, rec, choose(sel, modA, modB, modC))
	confirm := rec.lastPrompt(t)
	require.Len(t, confirm.Buttons, 2)
	assert.Equal(t, ActionModRemoveApply, confirm.Buttons[0].Action)
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodDeleteModerator), "nothing removed before confirming")

	dispatch(t, s, rec, press(confirm.Buttons[0]))
	assert.Equal(t, 3, fake.Calls(hostingtest.MethodDeleteModerator))

	left := fake.Moderators("a1")
	require.Len(t, left, 1)
	assert.Equal(t, modB, left[0].ID)

	p := rec.lastPanel(t)
	assert.Equal(t, "⚠️ Some removals failed", p.Fields[0].Name)
	report := p.Fields[0].Value
	assert.Contains(t, report, "`"+modA+"`: removed")
	assert.Contains(t, report, "`"+modB+"`: failed: Missing access")
	assert.Contains(t, report, "`"+modC+"`: removed")
}

func TestRemovalWithNothingSelected(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1", hosting.Moderator{ID: modA})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	dispatch(t, s, rec, bound(withValues(ActionModRemoveChosen), "a1"))
	assert.Equal(t, "Nothing selected", rec.lastNote(t).Title)

	err := s.Dispatch(context.Background(), rec, withArg(ActionModRemoveApply, "a1"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodDeleteModerator))
}

func TestRemovalCancel(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1", hosting.Moderator{ID: modA})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	dispatch(t, s, rec, bound(withValues(ActionModRemoveChosen, modA), "a1"))
	dispatch(t, s, rec, act(ActionCancel))
	assert.Equal(t, "Cancelled", rec.lastNote(t).Title)

	err := s.Dispatch(context.Background(), rec, withArg(ActionModRemoveApply, "a1"))
	assert.Error(t, err)
	assert.Len(t, fake.Moderators("a1"), 1)
}

func TestFormSubmitStaysWithItsApp(t *testing.T) {
	for _, tc := range []struct {
		name   string
		open   ActionKind
		field  string
		value  string
		method string
	}{
		{"ram", ActionRAMForm, FieldRAM, "1024", hostingtest.MethodResizeRAM},
		{"rename", ActionRenameForm, FieldName, "Other", hostingtest.MethodUpdateProfile},
		{"avatar", ActionAvatarForm, FieldAvatar, "https://cdn/other.png", hostingtest.MethodUpdateProfile},
		{"delete", ActionDeleteForm, FieldConfirm, "a2", hostingtest.MethodDeleteApplication},
		{"add moderator", ActionModAddForm, FieldModID, modA, hostingtest.MethodAddModerator},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := hostingtest.NewFake(sampleApps()...)
			s, rec := openSession(t, fake)
			dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
			dispatch(t, s, rec, act(tc.open))
			form := rec.lastForm(t)

			dispatch(t, s, rec, withValues(ActionSelectApp, "a2"))
			prompts := len(rec.prompts)
			err := s.Dispatch(context.Background(), rec, fill(form, tc.field, tc.value))
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			assert.Contains(t, rec.lastNote(t).Body, "opened for another application")
			assert.Equal(t, 0, fake.Calls(tc.method))
			assert.Len(t, rec.prompts, prompts)
			assert.Equal(t, "a2", s.Snapshot().SelectedAppID)

			app, ok := fake.App("a2")
			require.True(t, ok)
			assert.Equal(t, 512, app.RAM)
			assert.Equal(t, "Site", app.Name)
		})
	}
}

func TestModeratorPermissionsStayWithTheirApp(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1", hosting.Moderator{ID: modA, Perms: hosting.NewPermSet(hosting.PermLogsApp)})
	fake.SetModerators("a2", hosting.Moderator{ID: modA, Perms: hosting.NewPermSet(hosting.PermLogsApp)})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))

	dispatch(t, s, rec, act(ActionModAddForm))
	dispatch(t, s, rec, fill(rec.lastForm(t), FieldModID, modB))
	addPerms := rec.lastPrompt(t).Select
	require.NotNil(t, addPerms)

	dispatch(t, s, rec, act(ActionModEditPick))
	dispatch(t, s, rec, choose(rec.lastPrompt(t).Select, modA))
	editPerms := rec.lastPrompt(t).Select
	require.NotNil(t, editPerms)

	dispatch(t, s, rec, withValues(ActionSelectApp, "a2"))

	err := s.Dispatch(context.Background(), rec, choose(addPerms, "backup_app"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	err = s.Dispatch(context.Background(), rec, choose(editPerms, "backup_app"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, rec.lastNote(t).Body, "opened for another application")

	assert.Equal(t, 0, fake.Calls(hostingtest.MethodAddModerator))
	assert.Equal(t, 0, fake.Calls(hostingtest.MethodEditModerator))
	for _, id := range []string{"a1", "a2"} {
		mods := fake.Moderators(id)
		require.Len(t, mods, 1, id)
		assert.True(t, mods[0].Perms.Equal(hosting.NewPermSet(hosting.PermLogsApp)), id)
	}
}

func TestRemovalStaysWithItsApp(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	fake.SetModerators("a1", hosting.Moderator{ID: modA})
	fake.SetModerators("a2", hosting.Moderator{ID: modA})
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))
	dispatch(t, s, rec, withArg(ActionNavigate, "moderators"))

	dispatch(t, s, rec, act(ActionModRemovePick))
	dispatch(t, s, rec, choose(rec.lastPrompt(t).Select, modA))
	confirm := rec.lastPrompt(t)
	require.Len(t, confirm.Buttons, 2)
	assert.Equal(t, "a1", confirm.Buttons[0].Arg)

	dispatch(t, s, rec, withValues(ActionSelectApp, "a2"))

	err := s.Dispatch(context.Background(), rec, press(confirm.Buttons[0]))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, rec.lastNote(t).Body, "opened for another application")

	// a confirmation made for a1 is never applied to a2
	err = s.Dispatch(context.Background(), rec, withArg(ActionModRemoveApply, "a2"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, rec.lastNote(t).Body, "Nothing to remove")

	assert.Equal(t, 0, fake.Calls(hostingtest.MethodDeleteModerator))
	assert.Len(t, fake.Moderators("a1"), 1)
	assert.Len(t, fake.Moderators("a2"), 1)
}

func TestOnlyOwnerMayAct(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)

	a := withValues(ActionSelectApp, "a1")
	a.UserID = "999999999999999999"
	err := s.Dispatch(context.Background(), rec, a)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	assert.Equal(t, "Not allowed", rec.lastNote(t).Title)
	assert.Empty(t, s.Snapshot().SelectedAppID)
}

func TestExpiredSessionRejectsActions(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	calls := len(fake.History())

	final, ok := s.expire()
	require.True(t, ok)
	assert.Contains(t, final.Footer, "expired")
	_, again := s.expire()
	assert.False(t, again)

	err := s.Dispatch(context.Background(), rec, act(ActionRefresh))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
	assert.Equal(t, "Panel expired", rec.lastNote(t).Title)
	assert.Len(t, fake.History(), calls)
}

func TestExpireIdleWaitsForRunningAction(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)
	dispatch(t, s, rec, withValues(ActionSelectApp, "a1"))

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.OnCall(hostingtest.MethodBackup, func(context.Context) {
		close(entered)
		<-release
	})
	done := make(chan error, 1)
	go func() { done <- s.Dispatch(context.Background(), rec, act(ActionBackup)) }()
	<-entered

	_, ok := s.expireIdle()
	assert.False(t, ok)

	close(release)
	require.NoError(t, <-done)
	panels := rec.panelCount()

	final, ok := s.expireIdle()
	require.True(t, ok)
	assert.Contains(t, final.Footer, "expired")

	err := s.Dispatch(context.Background(), rec, act(ActionRefresh))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
	assert.Equal(t, panels, rec.panelCount())
}

func TestPromptsRequireSelection(t *testing.T) {
	fake := hostingtest.NewFake(sampleApps()...)
	s, rec := openSession(t, fake)

	for _, kind := range []ActionKind{ActionRAMForm, ActionStart, ActionBackup, ActionModRemovePick} {
		err := s.Dispatch(context.Background(), rec, act(kind))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), kind)
	}
	assert.Equal(t, 4, rec.noteCount())
}
