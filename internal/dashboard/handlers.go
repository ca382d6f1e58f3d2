package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
)

func (s *Session) selectApp(ctx context.Context, p Presenter, a Action) error {
	if err := s.state.Select(firstValue(a)); err != nil {
		return s.reject(ctx, p, a, err)
	}
	return s.refresh(ctx, p, true)
}

func (s *Session) navigate(ctx context.Context, p Presenter, a Action) error {
	m, ok := ParseMode(a.Arg)
	if !ok {
		return s.reject(ctx, p, a, apperrors.NewValidationError(fmt.Sprintf("Unknown tab %q.", a.Arg)))
	}
	if err := s.state.Navigate(m); err != nil {
		return s.reject(ctx, p, a, err)
	}
	return s.refresh(ctx, p, true)
}

func (s *Session) openForm(ctx context.Context, p Presenter, a Action) error {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return err
	}
	var f Form
	switch a.Kind {
	case ActionRAMForm:
		f = ramForm(app)
	case ActionRenameForm:
		f = renameForm(app)
	case ActionAvatarForm:
		f = avatarForm(app)
	case ActionDeleteForm:
		f = deleteForm(app)
	case ActionModAddForm:
		f = moderatorForm(app)
	}
	return p.OpenForm(ctx, f)
}

func (s *Session) lifecycle(ctx context.Context, p Presenter, a Action) error {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return err
	}

	var (
		op, label, done string
		call            func(context.Context, string) (*hosting.ActionResult, error)
	)
	switch a.Kind {
	case ActionStart:
		op, label, done, call = "Start", "Starting "+app.Name, "App started", s.client.Start
	case ActionStop:
		op, label, done, call = "Stop", "Stopping "+app.Name, "App stopped", s.client.Stop
	default:
		op, label, done, call = "Restart", "Restarting "+app.Name, "App restarted", s.client.Restart
	}

	if err := s.begin(ctx, p, label); err != nil {
		return s.reject(ctx, p, a, err)
	}
	res, err := call(ctx, app.ID)
	if err != nil {
		if !IsBenignConflict(err) {
			return s.fail(ctx, p, op, a, err)
		}
		s.opts.Errors.Describe(apperrors.NewStateConflict(err), logrus.Fields{"session_id": s.id, "app_id": app.ID})
		_ = s.state.Navigate(ModeStatus)
		return s.finish(ctx, p, Notification{
			Title:    "Nothing to do",
			Body:     humanize(err.Error()),
			Severity: SeverityWarning,
		}, true)
	}

	_ = s.state.Navigate(ModeStatus)
	return s.finish(ctx, p, Notification{Title: done, Body: resultMessage(res), Severity: SeveritySuccess}, true)
}

func (s *Session) resizeRAM(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}
	mb, err := ParseRAM(a.Field(FieldRAM))
	if err != nil {
		return s.reject(ctx, p, a, err)
	}

	if err := s.begin(ctx, p, fmt.Sprintf("Changing RAM of %s to %dMB", app.Name, mb)); err != nil {
		return s.reject(ctx, p, a, err)
	}
	res, err := s.client.ResizeRAM(ctx, app.ID, mb)
	if err != nil {
		return s.fail(ctx, p, "RAM change", a, err)
	}

	body := fmt.Sprintf("Requested: **%dMB**\nProvider: %s", mb, resultMessage(res))
	if err := s.startAfterResize(ctx, app.ID); err != nil {
		s.log.WithError(err).Warn("Restart after RAM change failed")
		body += "\nThe app stayed off (restart failed: " + humanize(err.Error()) + ")."
	} else {
		body += "\nThe app was started again."
	}
	return s.finish(ctx, p, Notification{Title: "RAM updated", Body: body, Severity: SeveritySuccess}, true)
}

// startAfterResize waits for the new limit to apply, then starts the app.
// An app that is already running counts as started.
func (s *Session) startAfterResize(ctx context.Context, appID string) error {
	if d := s.opts.RestartDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	_, err := s.client.Start(ctx, appID)
	if err != nil && IsBenignConflict(err) {
		return nil
	}
	return err
}

func (s *Session) backup(ctx context.Context, p Presenter, a Action) error {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return err
	}
	if err := s.begin(ctx, p, "Generating a backup of "+app.Name); err != nil {
		return s.reject(ctx, p, a, err)
	}
	b, err := s.client.Backup(ctx, app.ID)
	if err != nil {
		return s.fail(ctx, p, "Backup", a, err)
	}

	// the link grants access to the source, so it only goes to the requester
	if err := p.Notify(ctx, Notification{
		Title:    "Backup ready",
		Body:     fmt.Sprintf("[Download the backup of %s](%s)", app.Name, b.URL),
		Severity: SeveritySuccess,
	}); err != nil {
		s.log.WithError(err).Warn("Failed to deliver backup link")
	}
	return s.finish(ctx, p, Notification{
		Title:    "Backup generated",
		Body:     "The download link was sent to you privately.",
		Severity: SeveritySuccess,
	}, true)
}

func (s *Session) deleteApp(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}
	if err := ConfirmDeletion(app.ID, a.Field(FieldConfirm)); err != nil {
		return s.reject(ctx, p, a, err)
	}

	if err := s.begin(ctx, p, "Deleting "+app.Name); err != nil {
		return s.reject(ctx, p, a, err)
	}
	res, err := s.client.DeleteApplication(ctx, app.ID)
	if err != nil {
		return s.fail(ctx, p, "Delete", a, err)
	}

	s.cache.Remove(app.ID)
	s.state.Reset()
	return s.finish(ctx, p, Notification{
		Title:    "Application deleted",
		Body:     fmt.Sprintf("%s (%s) was deleted. %s", app.Name, code(app.ID), resultMessage(res)),
		Severity: SeveritySuccess,
	}, true)
}

// updateProfile changes one of name or avatar. The provider wants both, so
// the current profile is fetched and the other field passed through.
func (s *Session) updateProfile(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}

	rename := a.Kind == ActionRenameSubmit
	var value, op, label string
	if rename {
		value, err = ParseName(a.Field(FieldName))
		op, label = "Rename", "Renaming "+app.Name
	} else {
		value, err = ParseAvatarURL(a.Field(FieldAvatar))
		op, label = "Avatar change", "Changing the avatar of "+app.Name
	}
	if err != nil {
		return s.reject(ctx, p, a, err)
	}

	if err := s.begin(ctx, p, label); err != nil {
		return s.reject(ctx, p, a, err)
	}
	info, err := s.client.ApplicationInfo(ctx, app.ID)
	if err != nil {
		return s.fail(ctx, p, op, a, err)
	}
	name, avatar := info.Name, info.AvatarURL
	if rename {
		name = value
	} else {
		avatar = value
	}
	if _, err := s.client.UpdateProfile(ctx, app.ID, name, avatar); err != nil {
		return s.fail(ctx, p, op, a, err)
	}

	n := Notification{Severity: SeveritySuccess}
	if rename {
		s.cache.SetName(app.ID, value)
		n.Title, n.Body = "Application renamed", fmt.Sprintf("%s is now **%s**.", code(app.ID), value)
	} else {
		s.cache.SetAvatar(app.ID, value)
		n.Title, n.Body = "Avatar updated", fmt.Sprintf("New avatar for **%s** saved.", app.Name)
	}
	return s.finish(ctx, p, n, false)
}

// moderators returns the team of appID, reusing the list loaded by the
// moderators tab.
func (s *Session) moderators(ctx context.Context, appID string) ([]hosting.Moderator, error) {
	if s.modsApp == appID && s.mods != nil {
		return s.mods, nil
	}
	mods, err := s.client.ListModerators(ctx, appID)
	if err != nil {
		return nil, err
	}
	s.mods, s.modsApp = mods, appID
	return mods, nil
}

func (s *Session) teamOrReject(ctx context.Context, p Presenter, a Action, appID string) ([]hosting.Moderator, error) {
	mods, err := s.moderators(ctx, appID)
	if err != nil {
		return nil, s.reject(ctx, p, a, apperrors.WrapRemoteFailure(err, "Loading moderators"))
	}
	if len(mods) == 0 {
		return nil, s.reject(ctx, p, a, apperrors.NewValidationError("This application has no moderators."))
	}
	return mods, nil
}

func (s *Session) promptNewModerator(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}
	modID, err := ParseModeratorID(a.Field(FieldModID))
	if err != nil {
		return s.reject(ctx, p, a, err)
	}
	return p.Prompt(ctx, Prompt{
		Title:  "Permissions for " + modID,
		Body:   fmt.Sprintf("Choose what %s may do on **%s**.", code(modID), app.Name),
		Select: permissionSelect(ActionModAddPerms, modID, app.ID, nil),
	})
}

func (s *Session) addModerator(ctx context.Context, p Presenter, a Action) error {
	rawID, appID := splitModeratorArg(a.Arg)
	app, err := s.boundApp(ctx, p, a, appID)
	if err != nil {
		return err
	}
	modID, err := ParseModeratorID(rawID)
	if err != nil {
		return s.reject(ctx, p, a, err)
	}
	perms, err := ParsePermissions(a.Values)
	if err != nil {
		return s.reject(ctx, p, a, err)
	}

	if err := s.begin(ctx, p, "Adding moderator "+modID); err != nil {
		return s.reject(ctx, p, a, err)
	}
	if _, err := s.client.AddModerator(ctx, app.ID, modID, perms); err != nil {
		return s.fail(ctx, p, "Add moderator", a, err)
	}
	s.mods = nil
	_ = s.state.Navigate(ModeModerators)
	return s.finish(ctx, p, Notification{
		Title:    "Moderator added",
		Body:     fmt.Sprintf("%s can now use: %s", code(modID), code(perms.String())),
		Severity: SeveritySuccess,
	}, true)
}

func (s *Session) promptEditModerator(ctx context.Context, p Presenter, a Action) error {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return err
	}
	mods, err := s.teamOrReject(ctx, p, a, app.ID)
	if err != nil {
		return err
	}
	return p.Prompt(ctx, Prompt{
		Title:  "Edit moderator",
		Body:   "Pick the moderator whose permissions you want to change.",
		Select: moderatorSelect(ActionModEditChosen, app.ID, mods, 1, 1, "Choose a moderator..."),
	})
}

func (s *Session) promptModeratorPerms(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}
	mods, err := s.teamOrReject(ctx, p, a, app.ID)
	if err != nil {
		return err
	}
	modID := firstValue(a)
	for _, m := range mods {
		if m.ID != modID {
			continue
		}
		return p.Prompt(ctx, Prompt{
			Title:  "Permissions for " + modID,
			Body:   "Checked entries are the current permissions. Submitting replaces the whole set.",
			Select: permissionSelect(ActionModEditPerms, modID, app.ID, m.Perms),
		})
	}
	return s.reject(ctx, p, a, apperrors.NewValidationError(fmt.Sprintf("%s is not a moderator of this application anymore.", code(modID))))
}

func (s *Session) editModerator(ctx context.Context, p Presenter, a Action) error {
	rawID, appID := splitModeratorArg(a.Arg)
	app, err := s.boundApp(ctx, p, a, appID)
	if err != nil {
		return err
	}
	modID, err := ParseModeratorID(rawID)
	if err != nil {
		return s.reject(ctx, p, a, err)
	}
	perms, err := ParsePermissions(a.Values)
	if err != nil {
		return s.reject(ctx, p, a, err)
	}

	if err := s.begin(ctx, p, "Updating moderator "+modID); err != nil {
		return s.reject(ctx, p, a, err)
	}
	if _, err := s.client.EditModerator(ctx, app.ID, modID, perms); err != nil {
		return s.fail(ctx, p, "Edit moderator", a, err)
	}
	s.mods = nil
	_ = s.state.Navigate(ModeModerators)
	return s.finish(ctx, p, Notification{
		Title:    "Moderator updated",
		Body:     fmt.Sprintf("%s now has: %s", code(modID), code(perms.String())),
		Severity: SeveritySuccess,
	}, true)
}

func (s *Session) promptRemoveModerators(ctx context.Context, p Presenter, a Action) error {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return err
	}
	mods, err := s.teamOrReject(ctx, p, a, app.ID)
	if err != nil {
		return err
	}
	return p.Prompt(ctx, Prompt{
		Title:  "Remove moderators",
		Body:   "Select the moderators to remove. You will be asked to confirm.",
		Select: moderatorSelect(ActionModRemoveChosen, app.ID, mods, 0, len(mods), "Choose moderators..."),
	})
}

func (s *Session) confirmRemoveModerators(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}

	s.removal, s.removalApp = nil, app.ID
	seen := make(map[string]bool, len(a.Values))
	for _, id := range a.Values {
		if id != "" && !seen[id] {
			seen[id] = true
			s.removal = append(s.removal, id)
		}
	}
	if len(s.removal) == 0 {
		return p.Notify(ctx, Notification{
			Title:    "Nothing selected",
			Body:     "No moderators were selected, so nothing was removed.",
			Severity: SeverityInfo,
		})
	}

	lines := make([]string, len(s.removal))
	for i, id := range s.removal {
		lines[i] = "• " + code(id)
	}
	return p.Prompt(ctx, Prompt{
		Title: "Confirm removal",
		Body:  fmt.Sprintf("These moderators will lose access to **%s**:\n%s", app.Name, strings.Join(lines, "\n")),
		Buttons: ControlRow{
			{Kind: ControlButton, Action: ActionModRemoveApply, Arg: app.ID, Label: "Remove", Style: StyleDanger},
			{Kind: ControlButton, Action: ActionCancel, Label: "Cancel", Style: StyleSecondary},
		},
	})
}

// removeModerators deletes each confirmed id on its own so one failure does
// not stop the rest; the outcome of every id is reported.
func (s *Session) removeModerators(ctx context.Context, p Presenter, a Action) error {
	app, err := s.boundApp(ctx, p, a, a.Arg)
	if err != nil {
		return err
	}
	ids := s.removal
	if s.removalApp != app.ID {
		ids = nil
	}
	s.removal, s.removalApp = nil, ""
	if len(ids) == 0 {
		return s.reject(ctx, p, a, apperrors.NewValidationError("Nothing to remove. Pick the moderators again."))
	}

	if err := s.begin(ctx, p, fmt.Sprintf("Removing %d moderator(s)", len(ids))); err != nil {
		return s.reject(ctx, p, a, err)
	}

	lines := make([]string, 0, len(ids))
	failed := 0
	for _, id := range ids {
		if _, err := s.client.DeleteModerator(ctx, app.ID, id); err != nil {
			failed++
			lines = append(lines, fmt.Sprintf("%s: failed: %s", code(id), err.Error()))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: removed", code(id)))
	}
	s.mods = nil

	n := Notification{Title: "Moderators removed", Body: strings.Join(lines, "\n"), Severity: SeveritySuccess}
	switch {
	case failed == len(ids):
		n.Title, n.Severity = "Removal failed", SeverityError
	case failed > 0:
		n.Title, n.Severity = "Some removals failed", SeverityWarning
	}
	if failed > 0 {
		s.opts.Errors.Describe(
			apperrors.NewPartialFailure(fmt.Sprintf("%d of %d moderator removals failed", failed, len(ids))),
			logrus.Fields{"session_id": s.id, "app_id": app.ID},
		)
	}

	_ = s.state.Navigate(ModeModerators)
	return s.finish(ctx, p, n, true)
}

func resultMessage(res *hosting.ActionResult) string {
	if res == nil || strings.TrimSpace(res.Message) == "" {
		return "Done."
	}
	return humanize(res.Message)
}
