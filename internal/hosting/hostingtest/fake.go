// Package hostingtest provides an in-memory hosting.Client for tests.
package hostingtest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/zsiec/hostpanel/internal/hosting"
)

// Method names accepted by Fail, FailFor, OnCall and Calls.
const (
	MethodListApplications  = "ListApplications"
	MethodApplicationInfo   = "ApplicationInfo"
	MethodUserInfo          = "UserInfo"
	MethodStatus            = "Status"
	MethodLogs              = "Logs"
	MethodStart             = "Start"
	MethodStop              = "Stop"
	MethodRestart           = "Restart"
	MethodResizeRAM         = "ResizeRAM"
	MethodBackup            = "Backup"
	MethodDeleteApplication = "DeleteApplication"
	MethodUpdateProfile     = "UpdateProfile"
	MethodCommitFiles       = "CommitFiles"
	MethodUploadApplication = "UploadApplication"
	MethodListModerators    = "ListModerators"
	MethodAddModerator      = "AddModerator"
	MethodEditModerator     = "EditModerator"
	MethodDeleteModerator   = "DeleteModerator"
)

// Call is one recorded invocation.
type Call struct {
	Method string
	AppID  string
	Arg    string
}

// Fake keeps apps, moderators and the account in memory and mimics the
// provider's replies. Errors can be injected per method or per target id.
type Fake struct {
	mu        sync.Mutex
	apps      []hosting.Application
	user      hosting.User
	statuses  map[string]hosting.AppStatus
	logs      map[string]hosting.Logs
	mods      map[string][]hosting.Moderator
	archives  []hosting.Archive
	calls     []Call
	failAll   map[string]error
	failFor   map[string]error
	hooks     map[string]func(ctx context.Context)
	nextAppID int
}

var _ hosting.Client = (*Fake)(nil)

// NewFake returns a Fake holding copies of apps.
func NewFake(apps ...hosting.Application) *Fake {
	return &Fake{
		apps:     append([]hosting.Application(nil), apps...),
		user:     hosting.User{ID: "100000000000000001", Plan: "Gold", UsingRAM: 0, TotalRAM: 2048},
		statuses: make(map[string]hosting.AppStatus),
		logs:     make(map[string]hosting.Logs),
		mods:     make(map[string][]hosting.Moderator),
		failAll:  make(map[string]error),
		failFor:  make(map[string]error),
		hooks:    make(map[string]func(ctx context.Context)),
	}
}

// SetUser replaces the account returned by UserInfo.
func (f *Fake) SetUser(u hosting.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = u
}

// SetStatus sets the status returned for an app.
func (f *Fake) SetStatus(s hosting.AppStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[s.ID] = s
}

// SetLogs sets the logs returned for an app.
func (f *Fake) SetLogs(appID string, l hosting.Logs) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[appID] = l
}

// SetModerators replaces the team of an app.
func (f *Fake) SetModerators(appID string, mods ...hosting.Moderator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mods[appID] = append([]hosting.Moderator(nil), mods...)
}

// RemoveApp drops an app as if it was deleted elsewhere.
func (f *Fake) RemoveApp(appID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(appID)
}

// Fail makes every call to method return err. A nil err clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAll, method)
		return
	}
	f.failAll[method] = err
}

// FailFor makes method fail only for target, which is the moderator id for
// moderator writes and the app id otherwise.
func (f *Fake) FailFor(method, target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[method+"|"+target] = err
}

// OnCall runs fn at the start of every call to method, outside the lock.
// Tests use it to hold a call open.
func (f *Fake) OnCall(method string, fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[method] = fn
}

// Calls counts invocations of method.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// History returns every recorded call in order.
func (f *Fake) History() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Archives returns the archives received by commit and upload.
func (f *Fake) Archives() []hosting.Archive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hosting.Archive(nil), f.archives...)
}

// App returns the stored copy of an app.
func (f *Fake) App(appID string) (hosting.Application, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return hosting.Application{}, false
	}
	return f.apps[i], true
}

// Moderators returns the stored team of an app.
func (f *Fake) Moderators(appID string) []hosting.Moderator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hosting.Moderator(nil), f.mods[appID]...)
}

// enter records the call, runs its hook and returns any injected error.
func (f *Fake) enter(ctx context.Context, method, appID, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, AppID: appID, Arg: arg})
	hook := f.hooks[method]
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failAll[method]; ok {
		return err
	}
	target := appID
	if arg != "" && (method == MethodAddModerator || method == MethodEditModerator || method == MethodDeleteModerator) {
		target = arg
	}
	if err, ok := f.failFor[method+"|"+target]; ok {
		return err
	}
	return nil
}

func (f *Fake) indexLocked(appID string) int {
	for i, a := range f.apps {
		if a.ID == appID {
			return i
		}
	}
	return -1
}

func (f *Fake) removeLocked(appID string) {
	if i := f.indexLocked(appID); i >= 0 {
		f.apps = append(f.apps[:i], f.apps[i+1:]...)
	}
	delete(f.statuses, appID)
	delete(f.logs, appID)
	delete(f.mods, appID)
}

func notFound(appID string) error {
	return &hosting.APIError{StatusCode: http.StatusNotFound, Status: "error", Message: fmt.Sprintf("App %s not found", appID)}
}

func accepted(msg string) *hosting.ActionResult {
	return &hosting.ActionResult{Status: "ok", Message: msg}
}

func (f *Fake) ListApplications(ctx context.Context) ([]hosting.Application, error) {
	if err := f.enter(ctx, MethodListApplications, "", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hosting.Application(nil), f.apps...), nil
}

func (f *Fake) ApplicationInfo(ctx context.Context, appID string) (*hosting.Application, error) {
	if err := f.enter(ctx, MethodApplicationInfo, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return nil, notFound(appID)
	}
	app := f.apps[i]
	return &app, nil
}

func (f *Fake) UserInfo(ctx context.Context) (*hosting.User, error) {
	if err := f.enter(ctx, MethodUserInfo, "", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.user
	return &u, nil
}

func (f *Fake) Status(ctx context.Context, appID string) (*hosting.AppStatus, error) {
	if err := f.enter(ctx, MethodStatus, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return nil, notFound(appID)
	}
	s, found := f.statuses[appID]
	if !found {
		container := "Offline"
		if f.apps[i].Online {
			container = "Online"
		}
		s = hosting.AppStatus{ID: appID, Container: container, CPU: "0%", MemoryUsing: "0MB", MemoryAvailable: fmt.Sprintf("%dMB", f.apps[i].RAM)}
	}
	return &s, nil
}

func (f *Fake) Logs(ctx context.Context, appID string) (*hosting.Logs, error) {
	if err := f.enter(ctx, MethodLogs, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(appID) < 0 {
		return nil, notFound(appID)
	}
	l := f.logs[appID]
	return &l, nil
}

func (f *Fake) setOnline(ctx context.Context, method, appID string, online bool, already, done string) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, method, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return nil, notFound(appID)
	}
	if already != "" && f.apps[i].Online == online {
		return nil, &hosting.APIError{StatusCode: http.StatusConflict, Status: "error", Message: already}
	}
	f.apps[i].Online = online
	return accepted(done), nil
}

func (f *Fake) Start(ctx context.Context, appID string) (*hosting.ActionResult, error) {
	return f.setOnline(ctx, MethodStart, appID, true, "Your app is already online.", "Your app was started.")
}

func (f *Fake) Stop(ctx context.Context, appID string) (*hosting.ActionResult, error) {
	return f.setOnline(ctx, MethodStop, appID, false, "Your app is already offline.", "Your app was stopped.")
}

func (f *Fake) Restart(ctx context.Context, appID string) (*hosting.ActionResult, error) {
	return f.setOnline(ctx, MethodRestart, appID, true, "", "Your app was restarted.")
}

func (f *Fake) ResizeRAM(ctx context.Context, appID string, mb int) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodResizeRAM, appID, fmt.Sprint(mb)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return nil, notFound(appID)
	}
	f.apps[i].RAM = mb
	f.apps[i].Online = false
	return accepted(fmt.Sprintf("ramMB changed to %d", mb)), nil
}

func (f *Fake) Backup(ctx context.Context, appID string) (*hosting.Backup, error) {
	if err := f.enter(ctx, MethodBackup, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(appID) < 0 {
		return nil, notFound(appID)
	}
	return &hosting.Backup{URL: "https://backups.example.test/" + appID + ".zip"}, nil
}

func (f *Fake) DeleteApplication(ctx context.Context, appID string) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodDeleteApplication, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(appID) < 0 {
		return nil, notFound(appID)
	}
	f.removeLocked(appID)
	return accepted("Your app was deleted."), nil
}

func (f *Fake) UpdateProfile(ctx context.Context, appID, name, avatarURL string) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodUpdateProfile, appID, name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(appID)
	if i < 0 {
		return nil, notFound(appID)
	}
	f.apps[i].Name = name
	f.apps[i].AvatarURL = avatarURL
	return accepted("Profile updated."), nil
}

func (f *Fake) CommitFiles(ctx context.Context, appID string, archive hosting.Archive) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodCommitFiles, appID, archive.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(appID) < 0 {
		return nil, notFound(appID)
	}
	f.archives = append(f.archives, archive)
	return accepted("Commit received."), nil
}

func (f *Fake) UploadApplication(ctx context.Context, archive hosting.Archive) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodUploadApplication, "", archive.Name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives = append(f.archives, archive)
	f.nextAppID++
	id := fmt.Sprintf("uploaded-%d", f.nextAppID)
	f.apps = append(f.apps, hosting.Application{ID: id, Name: archive.Name, RAM: 100})
	return accepted("Upload complete: " + id), nil
}

func (f *Fake) ListModerators(ctx context.Context, appID string) ([]hosting.Moderator, error) {
	if err := f.enter(ctx, MethodListModerators, appID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(appID) < 0 {
		return nil, notFound(appID)
	}
	mods := append([]hosting.Moderator(nil), f.mods[appID]...)
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	return mods, nil
}

func (f *Fake) AddModerator(ctx context.Context, appID, modID string, perms hosting.PermSet) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodAddModerator, appID, modID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mods[appID] {
		if m.ID == modID {
			return nil, &hosting.APIError{StatusCode: http.StatusConflict, Status: "error", Message: "This user is already a moderator."}
		}
	}
	f.mods[appID] = append(f.mods[appID], hosting.Moderator{ID: modID, Perms: hosting.NewPermSet(perms.Sorted()...)})
	return accepted("Moderator added."), nil
}

func (f *Fake) EditModerator(ctx context.Context, appID, modID string, perms hosting.PermSet) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodEditModerator, appID, modID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.mods[appID] {
		if m.ID == modID {
			f.mods[appID][i].Perms = hosting.NewPermSet(perms.Sorted()...)
			return accepted("Moderator updated."), nil
		}
	}
	return nil, &hosting.APIError{StatusCode: http.StatusNotFound, Status: "error", Message: "Moderator not found."}
}

func (f *Fake) DeleteModerator(ctx context.Context, appID, modID string) (*hosting.ActionResult, error) {
	if err := f.enter(ctx, MethodDeleteModerator, appID, modID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mods := f.mods[appID]
	for i, m := range mods {
		if m.ID == modID {
			f.mods[appID] = append(mods[:i], mods[i+1:]...)
			return accepted("Moderator removed."), nil
		}
	}
	return nil, &hosting.APIError{StatusCode: http.StatusNotFound, Status: "error", Message: "Moderator not found."}
}
