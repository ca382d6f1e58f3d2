package hosting

import (
	"sort"
	"strings"
	"time"
)

// AppType distinguishes bots from sites.
type AppType int

const (
	AppTypeBot  AppType = 0
	AppTypeSite AppType = 1
)

func (t AppType) String() string {
	switch t {
	case AppTypeBot:
		return "Bot"
	case AppTypeSite:
		return "Site"
	default:
		return "Unknown"
	}
}

// Application is a hosted app as last reported by the provider.
type Application struct {
	ID            string
	Name          string
	Online        bool
	Language      string
	MainFile      string
	AvatarURL     string
	AutoDeployGit string // provider reports "no" when disabled
	AutoRestart   bool
	RAMKilled     bool
	Type          AppType
	RAM           int // MB
}

// GitAutoDeploy reports whether pushes redeploy the app.
func (a Application) GitAutoDeploy() bool {
	v := strings.TrimSpace(strings.ToLower(a.AutoDeployGit))
	return v != "" && v != "no"
}

// User is the account that owns the API token.
type User struct {
	ID            string
	Plan          string
	PlanExpiresAt *time.Time // nil for lifetime plans
	UsingRAM      int        // MB
	TotalRAM      int        // MB
	Locale        string
}

// AppStatus is a live container snapshot. Sizes keep the provider's human
// form ("512MB", "1.2GB") because they are only ever displayed.
type AppStatus struct {
	ID              string
	Container       string
	CPU             string
	MemoryUsing     string
	MemoryAvailable string
	NetDown         string
	NetUp           string
	SSD             string
	StartedAt       *time.Time
	OnlineSince     string
}

// Online reports whether the container is running.
func (s AppStatus) Online() bool {
	return strings.EqualFold(s.Container, "online")
}

// Logs is the recent terminal output of an app.
type Logs struct {
	Tail string
	URL  string
}

// Backup points at a downloadable archive of the app's source.
type Backup struct {
	URL string
}

// ActionResult is the provider's reply to a mutating call.
type ActionResult struct {
	Status  string
	Message string
}

// OK reports whether the provider accepted the call.
func (r ActionResult) OK() bool {
	return r.Status == "ok"
}

// Archive is a zip payload for commit and upload.
type Archive struct {
	Name string
	Data []byte
}

// Permission is one grant a moderator can hold over an app.
type Permission string

const (
	PermStartApp   Permission = "start_app"
	PermStopApp    Permission = "stop_app"
	PermRestartApp Permission = "restart_app"
	PermLogsApp    Permission = "logs_app"
	PermStatusApp  Permission = "status_app"
	PermCommitApp  Permission = "commit_app"
	PermEditRAM    Permission = "edit_ram"
	PermBackupApp  Permission = "backup_app"
)

// AllPermissions lists the vocabulary in display order.
var AllPermissions = []Permission{
	PermStartApp,
	PermStopApp,
	PermRestartApp,
	PermLogsApp,
	PermStatusApp,
	PermCommitApp,
	PermEditRAM,
	PermBackupApp,
}

var permissionLabels = map[Permission]string{
	PermStartApp:   "Start",
	PermStopApp:    "Stop",
	PermRestartApp: "Restart",
	PermLogsApp:    "Logs",
	PermStatusApp:  "Status",
	PermCommitApp:  "Commit",
	PermEditRAM:    "Edit RAM",
	PermBackupApp:  "Backup",
}

// Label is the human name of p.
func (p Permission) Label() string {
	if l, ok := permissionLabels[p]; ok {
		return l
	}
	return string(p)
}

// Valid reports whether p belongs to the vocabulary.
func (p Permission) Valid() bool {
	_, ok := permissionLabels[p]
	return ok
}

// PermSet is an unordered set of permissions.
type PermSet map[Permission]struct{}

// NewPermSet builds a set, ignoring duplicates.
func NewPermSet(perms ...Permission) PermSet {
	s := make(PermSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// ParsePermSet builds a set from raw strings and reports values outside the
// vocabulary.
func ParsePermSet(raw []string) (PermSet, []string) {
	s := make(PermSet, len(raw))
	var unknown []string
	for _, r := range raw {
		p := Permission(strings.TrimSpace(r))
		if !p.Valid() {
			unknown = append(unknown, r)
			continue
		}
		s[p] = struct{}{}
	}
	return s, unknown
}

func (s PermSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s PermSet) Len() int { return len(s) }

// Equal reports whether both sets hold the same permissions.
func (s PermSet) Equal(o PermSet) bool {
	if len(s) != len(o) {
		return false
	}
	for p := range s {
		if !o.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the permissions in vocabulary order.
func (s PermSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	order := make(map[Permission]int, len(AllPermissions))
	for i, p := range AllPermissions {
		order[p] = i
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

// Strings returns the wire form of the set in vocabulary order.
func (s PermSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

func (s PermSet) String() string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s.Strings(), ", ")
}

// Moderator is a user granted a scoped permission set over one app.
type Moderator struct {
	ID    string
	Perms PermSet
}
