package hosting

import "context"

// Client is the hosting provider API as the dashboard consumes it. Every
// method blocks on one remote round trip; implementations must be safe for
// concurrent use by independent dashboards.
type Client interface {
	ListApplications(ctx context.Context) ([]Application, error)
	ApplicationInfo(ctx context.Context, appID string) (*Application, error)
	UserInfo(ctx context.Context) (*User, error)
	Status(ctx context.Context, appID string) (*AppStatus, error)
	Logs(ctx context.Context, appID string) (*Logs, error)

	Start(ctx context.Context, appID string) (*ActionResult, error)
	Stop(ctx context.Context, appID string) (*ActionResult, error)
	Restart(ctx context.Context, appID string) (*ActionResult, error)
	ResizeRAM(ctx context.Context, appID string, mb int) (*ActionResult, error)
	Backup(ctx context.Context, appID string) (*Backup, error)
	DeleteApplication(ctx context.Context, appID string) (*ActionResult, error)
	UpdateProfile(ctx context.Context, appID, name, avatarURL string) (*ActionResult, error)

	CommitFiles(ctx context.Context, appID string, archive Archive) (*ActionResult, error)
	UploadApplication(ctx context.Context, archive Archive) (*ActionResult, error)

	ListModerators(ctx context.Context, appID string) ([]Moderator, error)
	AddModerator(ctx context.Context, appID, modID string, perms PermSet) (*ActionResult, error)
	EditModerator(ctx context.Context, appID, modID string, perms PermSet) (*ActionResult, error)
	DeleteModerator(ctx context.Context, appID, modID string) (*ActionResult, error)
}
