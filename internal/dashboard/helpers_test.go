package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/hosting/hostingtest"
)

const (
	ownerID = "300000000000000003"
	modA    = "111111111111111111"
	modB    = "222222222222222222"
	modC    = "333333333333333333"
)

// recorder is a Presenter that keeps everything it is asked to show.
type recorder struct {
	mu      sync.Mutex
	panels  []Panel
	notes   []Notification
	forms   []Form
	prompts []Prompt
}

func (r *recorder) ShowPanel(_ context.Context, p Panel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels = append(r.panels, p)
	return nil
}

func (r *recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recorder) OpenForm(_ context.Context, f Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms = append(r.forms, f)
	return nil
}

func (r *recorder) Prompt(_ context.Context, p Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
	return nil
}

func (r *recorder) lastPanel(t *testing.T) Panel {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.panels, "no panel shown")
	return r.panels[len(r.panels)-1]
}

func (r *recorder) panelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.panels)
}

func (r *recorder) lastNote(t *testing.T) Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.notes, "no notification sent")
	return r.notes[len(r.notes)-1]
}

func (r *recorder) noteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func (r *recorder) lastPrompt(t *testing.T) Prompt {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.prompts, "no prompt shown")
	return r.prompts[len(r.prompts)-1]
}

func (r *recorder) lastForm(t *testing.T) Form {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.forms, "no form opened")
	return r.forms[len(r.forms)-1]
}

func sampleApps() []hosting.Application {
	return []hosting.Application{
		{ID: "a1", Name: "Bot", Online: false, RAM: 256, AvatarURL: "https://cdn/bot.png"},
		{ID: "a2", Name: "Site", Online: true, RAM: 512, Type: hosting.AppTypeSite},
	}
}

// openSession returns a rendered session over fake, owned by ownerID.
func openSession(t *testing.T, fake *hostingtest.Fake) (*Session, *recorder) {
	t.Helper()
	s := NewSession("s1", Owner{ID: ownerID, Name: "owner"}, fake, Options{
		RestrictToOwner: true,
		DashboardURL:    "https://dash.example.test",
	})
	rec := &recorder{}
	require.NoError(t, s.Open(context.Background(), rec))
	return s, rec
}

func act(kind ActionKind) Action {
	return Action{Kind: kind, UserID: ownerID}
}

func withArg(kind ActionKind, arg string) Action {
	a := act(kind)
	a.Arg = arg
	return a
}

func withValues(kind ActionKind, values ...string) Action {
	a := act(kind)
	a.Values = values
	return a
}

func withField(kind ActionKind, id, value string) Action {
	a := act(kind)
	a.Fields = map[string]string{id: value}
	return a
}

// bound sets the app id a form or prompt control carries.
func bound(a Action, appID string) Action {
	a.Arg = appID
	return a
}

// fill submits f with one field typed in.
func fill(f Form, id, value string) Action {
	return bound(withField(f.Submit, id, value), f.Arg)
}

// choose submits the select c with values picked.
func choose(c *Control, values ...string) Action {
	return bound(withValues(c.Action, values...), c.Arg)
}

func press(c Control) Action {
	return withArg(c.Action, c.Arg)
}

func dispatch(t *testing.T, s *Session, p Presenter, a Action) {
	t.Helper()
	require.NoError(t, s.Dispatch(context.Background(), p, a))
}

// notificationCount counts the notification fields on a panel.
func notificationCount(p Panel) int {
	n := 0
	for _, f := range p.Fields {
		for _, sev := range []Severity{SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError} {
			if strings.HasPrefix(f.Name, sev.Icon()+" ") && !strings.HasSuffix(f.Name, "(cont.)") {
				n++
			}
		}
	}
	return n
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
