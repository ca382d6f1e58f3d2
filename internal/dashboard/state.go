package dashboard

import (
	"fmt"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
)

// State is the dashboard state machine for one panel. It is not safe for
// concurrent use; Session serializes access.
type State struct {
	SelectedAppID string // empty means home
	Mode          Mode
	Busy          bool
	BusyLabel     string
	Pending       *Notification
	Apps          []hosting.Application
}

// NewState returns a state on the home tab with nothing selected.
func NewState() *State {
	return &State{Mode: ModeHome}
}

// App looks id up in the current snapshot.
func (s *State) App(id string) (hosting.Application, bool) {
	for _, a := range s.Apps {
		if a.ID == id {
			return a, true
		}
	}
	return hosting.Application{}, false
}

// Selected returns the selected application, if any.
func (s *State) Selected() (hosting.Application, bool) {
	if s.SelectedAppID == "" {
		return hosting.Application{}, false
	}
	return s.App(s.SelectedAppID)
}

// Select focuses appID and opens its status tab. An id missing from the
// snapshot leaves the state untouched.
func (s *State) Select(appID string) error {
	if _, ok := s.App(appID); !ok {
		return apperrors.NewValidationError(fmt.Sprintf("Application `%s` is not in your list anymore. Refresh and try again.", appID))
	}
	s.SelectedAppID = appID
	s.Mode = ModeStatus
	return nil
}

// Navigate switches tabs. Home clears the selection; every other tab needs one.
func (s *State) Navigate(m Mode) error {
	if m == ModeHome {
		s.SelectedAppID = ""
		s.Mode = ModeHome
		return nil
	}
	if _, ok := s.Selected(); !ok {
		return apperrors.NewValidationError("Select an application first.")
	}
	s.Mode = m
	return nil
}

// BeginOperation marks a mutating call as outstanding.
func (s *State) BeginOperation(label string) error {
	if s.Busy {
		return apperrors.NewBusyError()
	}
	s.Busy = true
	s.BusyLabel = label
	return nil
}

// EndOperation clears the busy flag and queues n, if any, for the next render.
func (s *State) EndOperation(n *Notification) {
	s.Busy = false
	s.BusyLabel = ""
	if n != nil {
		s.Notify(*n)
	}
}

// Reset returns to home after the selected app was destroyed.
func (s *State) Reset() {
	s.SelectedAppID = ""
	s.Mode = ModeHome
}

// Notify queues n for the next render, folding it into one already queued.
func (s *State) Notify(n Notification) {
	if s.Pending != nil {
		merged := s.Pending.merge(n)
		s.Pending = &merged
		return
	}
	s.Pending = &n
}

// ApplySnapshot installs a freshly fetched application list. When the
// selected app is gone the state falls back to home and a warning explaining
// why is merged into the pending notification; it reports whether that
// happened.
func (s *State) ApplySnapshot(apps []hosting.Application) bool {
	s.Apps = apps
	if s.SelectedAppID == "" {
		if s.Mode != ModeHome {
			s.Mode = ModeHome
		}
		return false
	}
	if _, ok := s.App(s.SelectedAppID); ok {
		return false
	}

	gone := s.SelectedAppID
	s.Reset()
	s.Notify(Notification{
		Title:    "Application unavailable",
		Body:     fmt.Sprintf("`%s` is no longer in your application list, so the dashboard went back home.", gone),
		Severity: SeverityWarning,
	})
	return true
}

// TakeNotification returns the queued notification and clears it.
func (s *State) TakeNotification() *Notification {
	n := s.Pending
	s.Pending = nil
	return n
}

// Snapshot copies s for rendering.
func (s *State) Snapshot() State {
	cp := *s
	cp.Apps = append([]hosting.Application(nil), s.Apps...)
	if s.Pending != nil {
		n := *s.Pending
		cp.Pending = &n
	}
	return cp
}
