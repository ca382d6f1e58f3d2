package dashboard

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
)

// Presenter delivers dashboard output for one interaction. ShowPanel replaces
// the shared panel in place; Notify, OpenForm and Prompt are private to the
// user who acted.
type Presenter interface {
	ShowPanel(ctx context.Context, p Panel) error
	Notify(ctx context.Context, n Notification) error
	OpenForm(ctx context.Context, f Form) error
	Prompt(ctx context.Context, p Prompt) error
}

// Owner is the user a panel was opened for.
type Owner struct {
	ID        string
	Name      string
	AvatarURL string
}

// Options tune every session of a registry.
type Options struct {
	RestartDelay    time.Duration // wait between a RAM resize and the restart
	DashboardURL    string
	RestrictToOwner bool
	ExpiredHint     string
	Logger          *logger.SampledLogger
	Errors          *apperrors.ErrorHandler
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NewDashboardLogger(logger.NewNullLogger())
	}
	if o.Errors == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		o.Errors = apperrors.NewErrorHandler(quiet)
	}
	if o.ExpiredHint == "" {
		o.ExpiredHint = "Use /panel to open a new one."
	}
	return o
}

// Session is one live dashboard. Dispatch is safe to call from any
// goroutine: one action runs at a time and the rest are rejected as busy.
type Session struct {
	id     string
	owner  Owner
	client hosting.Client
	opts   Options
	log    *logger.SampledLogger
	now    func() time.Time

	gate       atomic.Bool
	expired    atomic.Bool
	lastActive atomic.Int64

	// mu is held for the whole of a dispatch.
	mu      sync.Mutex
	state   *State
	cache   *AppCache
	retry   *Action
	mods    []hosting.Moderator
	modsApp string

	// removal holds the ids confirmed for removal from removalApp.
	removal    []string
	removalApp string

	lastMu sync.Mutex
	last   Panel
}

// NewSession builds a session; Open renders it for the first time.
func NewSession(id string, owner Owner, client hosting.Client, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:     id,
		owner:  owner,
		client: client,
		opts:   opts,
		log:    opts.Logger.With(map[string]interface{}{"session_id": id, "owner_id": owner.ID}),
		now:    time.Now,
		state:  NewState(),
		cache:  NewAppCache(),
	}
	s.touch()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Owner returns who opened the panel.
func (s *Session) Owner() Owner { return s.owner }

// Expired reports whether the session stopped accepting actions.
func (s *Session) Expired() bool { return s.expired.Load() }

// LastActive is when the session last started or finished an action.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// LastPanel returns the panel most recently shown.
func (s *Session) LastPanel() Panel {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

// Snapshot copies the state. It waits for a running action to finish.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

func (s *Session) touch() {
	s.lastActive.Store(s.now().UnixNano())
}

// expire makes the session terminal and returns its frozen last panel. Only
// the first call reports true.
func (s *Session) expire() (Panel, bool) {
	if !s.expired.CompareAndSwap(false, true) {
		return Panel{}, false
	}
	return RenderExpired(s.LastPanel(), s.opts.ExpiredHint), true
}

// expireIdle expires the session unless an action is in flight. It holds the
// action gate while doing so; Dispatch re-checks expiry once it has the gate,
// so no action can redraw over the frozen panel.
func (s *Session) expireIdle() (Panel, bool) {
	if !s.gate.CompareAndSwap(false, true) {
		return Panel{}, false
	}
	defer s.gate.Store(false)
	return s.expire()
}

// Open performs the first render.
func (s *Session) Open(ctx context.Context, p Presenter) error {
	return s.Dispatch(ctx, p, Action{Kind: ActionRefresh, UserID: s.owner.ID})
}

// Dispatch runs a. Every outcome is reported through p; the returned error
// classifies rejected or failed actions for the caller's logs.
func (s *Session) Dispatch(ctx context.Context, p Presenter, a Action) error {
	if s.expired.Load() {
		s.log.DebugWithCategory(logger.CategoryLateCallback, "Action on expired panel", map[string]interface{}{"action": string(a.Kind)})
		return s.reject(ctx, p, a, apperrors.NewExpiredError())
	}
	if s.opts.RestrictToOwner && a.UserID != s.owner.ID {
		return s.reject(ctx, p, a, apperrors.NewForbiddenError("Only the user who opened this panel can use it."))
	}
	if !s.gate.CompareAndSwap(false, true) {
		metrics.IncrementBusyRejections()
		s.log.DebugWithCategory(logger.CategoryBusyRejection, "Action rejected while another one runs", map[string]interface{}{"action": string(a.Kind)})
		return s.reject(ctx, p, a, apperrors.NewBusyError())
	}
	defer s.gate.Store(false)
	if s.expired.Load() {
		return s.reject(ctx, p, a, apperrors.NewExpiredError())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	defer s.touch()

	err := s.handle(ctx, p, a)
	metrics.RecordAction(string(a.Kind), outcome(err))
	return err
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		return metrics.OutcomeFailure
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeBusy, apperrors.ErrorTypeExpired, apperrors.ErrorTypeForbidden:
		return metrics.OutcomeRejected
	case apperrors.ErrorTypeStateConflict, apperrors.ErrorTypePartialFailure:
		return metrics.OutcomeWarning
	default:
		return metrics.OutcomeFailure
	}
}

// reject tells the acting user privately why nothing happened.
func (s *Session) reject(ctx context.Context, p Presenter, a Action, err error) error {
	d := s.opts.Errors.Describe(err, logrus.Fields{
		"session_id": s.id,
		"user_id":    a.UserID,
		"action":     string(a.Kind),
	})
	sev := SeverityWarning
	if apperrors.IsType(err, apperrors.ErrorTypeBusy) {
		sev = SeverityInfo
	}
	if nerr := p.Notify(ctx, Notification{Title: d.Title, Body: d.Detail, Severity: sev}); nerr != nil {
		return errors.Join(err, nerr)
	}
	return err
}

func (s *Session) show(ctx context.Context, p Presenter, panel Panel) error {
	s.lastMu.Lock()
	s.last = panel
	s.lastMu.Unlock()

	if err := p.ShowPanel(ctx, panel); err != nil {
		s.log.WarnWithCategory(logger.CategoryPanelEdit, "Failed to update panel", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

// refresh is the render cycle. With refetch the app list is reloaded first,
// falling back to the cache; then the active tab's data is fetched and the
// panel replaced.
func (s *Session) refresh(ctx context.Context, p Presenter, refetch bool) error {
	apps, _ := s.cache.Snapshot()
	if refetch {
		fresh, err := s.client.ListApplications(ctx)
		if err != nil {
			s.log.WarnWithCategory(logger.CategoryRefreshFallback, "Using cached application list", map[string]interface{}{"error": err.Error()})
			s.state.Notify(Notification{
				Title:    "Showing cached data",
				Body:     "Could not refresh the application list: " + err.Error(),
				Severity: SeverityWarning,
			})
		} else {
			s.cache.Store(fresh)
			apps, _ = s.cache.Snapshot()
		}
	}
	if s.state.ApplySnapshot(apps) {
		s.log.Info("Selected application vanished, back to home")
	}

	mode := s.state.Mode.String()
	data, label, err := s.fetch(ctx)
	if err != nil {
		metrics.RecordRender(mode, metrics.OutcomeFailure)
		return s.fail(ctx, p, label, Action{Kind: ActionRefresh}, err)
	}

	view := s.state.Snapshot()
	view.Pending = s.state.TakeNotification()
	if view.Pending != nil && view.Pending.Severity == SeverityWarning {
		metrics.RecordRender(mode, metrics.OutcomeWarning)
	} else {
		metrics.RecordRender(mode, metrics.OutcomeSuccess)
	}
	return s.show(ctx, p, Render(view, data))
}

// fetch loads what the active tab displays. label names the step for the
// error panel.
func (s *Session) fetch(ctx context.Context) (ModeData, string, error) {
	data := ModeData{OwnerAvatarURL: s.owner.AvatarURL, DashboardURL: s.opts.DashboardURL}

	app, ok := s.state.Selected()
	if !ok || s.state.Mode == ModeHome {
		u, err := s.client.UserInfo(ctx)
		if err != nil {
			return data, "Loading account", err
		}
		data.User = u
		return data, "", nil
	}

	switch s.state.Mode {
	case ModeStatus:
		st, err := s.client.Status(ctx, app.ID)
		if err != nil {
			return data, "Loading status", err
		}
		data.Status = st
	case ModeLogs:
		logs, err := s.client.Logs(ctx, app.ID)
		if err != nil {
			return data, "Loading logs", err
		}
		data.Logs = logs
	case ModeModerators:
		mods, err := s.client.ListModerators(ctx, app.ID)
		if err != nil {
			return data, "Loading moderators", err
		}
		s.mods, s.modsApp = mods, app.ID
		data.Moderators = mods
	case ModeControl, ModeTools:
	}
	return data, "", nil
}

// begin marks the operation outstanding and shows the placeholder.
func (s *Session) begin(ctx context.Context, p Presenter, label string) error {
	if err := s.state.BeginOperation(label); err != nil {
		return err
	}
	// a failed placeholder is logged by show; the operation goes ahead
	_ = s.show(ctx, p, RenderProcessing(s.state.Snapshot(), label))
	return nil
}

// finish ends the operation with n and re-renders.
func (s *Session) finish(ctx context.Context, p Presenter, n Notification, refetch bool) error {
	s.state.EndOperation(&n)
	return s.refresh(ctx, p, refetch)
}

// fail ends the operation and leaves the error panel up with a retry of a.
func (s *Session) fail(ctx context.Context, p Presenter, label string, a Action, err error) error {
	appErr := apperrors.WrapRemoteFailure(err, label)
	s.opts.Errors.Describe(appErr, logrus.Fields{
		"session_id": s.id,
		"action":     string(a.Kind),
		"app_id":     s.state.SelectedAppID,
	})

	s.state.EndOperation(nil)
	retry := a
	s.retry = &retry

	if perr := s.show(ctx, p, RenderError(s.state.Snapshot(), label, err)); perr != nil {
		return errors.Join(appErr, perr)
	}
	return appErr
}

// requireApp returns the selected app or tells the user to pick one.
func (s *Session) requireApp(ctx context.Context, p Presenter, a Action) (hosting.Application, error) {
	app, ok := s.state.Selected()
	if !ok {
		return app, s.reject(ctx, p, a, apperrors.NewValidationError("Select an application first."))
	}
	return app, nil
}

// boundApp is requireApp for submits of a form or prompt opened for appID.
// It rejects the submit when another app has been selected since.
func (s *Session) boundApp(ctx context.Context, p Presenter, a Action, appID string) (hosting.Application, error) {
	app, err := s.requireApp(ctx, p, a)
	if err != nil {
		return app, err
	}
	if appID != app.ID {
		return app, s.reject(ctx, p, a, apperrors.NewValidationError(
			"This form was opened for another application, so nothing was changed. Open it again from the panel."))
	}
	return app, nil
}

func (s *Session) handle(ctx context.Context, p Presenter, a Action) error {
	if a.Kind != ActionRetry {
		s.retry = nil
	}

	switch a.Kind {
	case ActionSelectApp:
		return s.selectApp(ctx, p, a)
	case ActionNavigate:
		return s.navigate(ctx, p, a)
	case ActionRefresh:
		return s.refresh(ctx, p, true)
	case ActionRetry:
		if s.retry == nil {
			return s.refresh(ctx, p, true)
		}
		next := *s.retry
		s.retry = nil
		return s.handle(ctx, p, next)
	case ActionCancel:
		s.removal, s.removalApp = nil, ""
		return p.Notify(ctx, Notification{Title: "Cancelled", Body: "Nothing was changed.", Severity: SeverityInfo})

	case ActionStart, ActionStop, ActionRestart:
		return s.lifecycle(ctx, p, a)
	case ActionBackup:
		return s.backup(ctx, p, a)
	case ActionRAMForm, ActionRenameForm, ActionAvatarForm, ActionDeleteForm, ActionModAddForm:
		return s.openForm(ctx, p, a)
	case ActionRAMSubmit:
		return s.resizeRAM(ctx, p, a)
	case ActionRenameSubmit, ActionAvatarSubmit:
		return s.updateProfile(ctx, p, a)
	case ActionDeleteSubmit:
		return s.deleteApp(ctx, p, a)

	case ActionModAddID:
		return s.promptNewModerator(ctx, p, a)
	case ActionModAddPerms:
		return s.addModerator(ctx, p, a)
	case ActionModEditPick:
		return s.promptEditModerator(ctx, p, a)
	case ActionModEditChosen:
		return s.promptModeratorPerms(ctx, p, a)
	case ActionModEditPerms:
		return s.editModerator(ctx, p, a)
	case ActionModRemovePick:
		return s.promptRemoveModerators(ctx, p, a)
	case ActionModRemoveChosen:
		return s.confirmRemoveModerators(ctx, p, a)
	case ActionModRemoveApply:
		return s.removeModerators(ctx, p, a)
	}
	return s.reject(ctx, p, a, apperrors.NewValidationError("This control is no longer supported. Open a new panel."))
}

func firstValue(a Action) string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}
