package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
)

// Form field ids.
const (
	FieldRAM     = "ram_mb"
	FieldModID   = "mod_id"
	FieldName    = "name"
	FieldAvatar  = "avatar_url"
	FieldConfirm = "confirm_id"
)

// FormField is one text input of a Form.
type FormField struct {
	ID          string
	Label       string
	Placeholder string
	Value       string
	MinLength   int
	MaxLength   int
	Required    bool
}

// Form is a modal that submits its fields as Submit.
type Form struct {
	Submit ActionKind
	Arg    string
	Title  string
	Fields []FormField
}

// Prompt is a private follow-up asking for a choice. Select, when set, emits
// its action with the chosen values; Buttons are plain controls.
type Prompt struct {
	Title   string
	Body    string
	Select  *Control
	Buttons ControlRow
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type ramInput struct {
	MB string `validate:"required,number,min=2,max=5"`
}

type moderatorInput struct {
	ID string `validate:"required,number,min=15,max=20"`
}

type nameInput struct {
	Name string `validate:"required,min=1,max=32"`
}

type avatarInput struct {
	URL string `validate:"required,http_url,max=512"`
}

type deleteInput struct {
	Expected string
	Typed    string `validate:"required,eqfield=Expected"`
}

type permsInput struct {
	Perms []string `validate:"min=1,max=8,unique,dive,oneof=start_app stop_app restart_app logs_app status_app commit_app edit_ram backup_app"`
}

var validationMessages = map[string]string{
	"MB":    "The RAM amount must be a whole number of megabytes with 2 to 5 digits.",
	"ID":    "The moderator ID must be a numeric user ID with 15 to 20 digits.",
	"Name":  "The name must have between 1 and 32 characters.",
	"URL":   "The avatar must be an http(s) URL.",
	"Typed": "The typed ID does not match the application ID. Nothing was deleted.",
	"Perms": "Pick at least one permission from the list.",
}

func check(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].StructField()
		if msg, ok := validationMessages[field]; ok {
			return apperrors.NewValidationError(msg)
		}
		return apperrors.NewValidationError(fmt.Sprintf("%s is invalid", field))
	}
	return apperrors.WrapInternalError(err, "validation failed")
}

// ParseRAM validates a RAM amount typed into a form.
func ParseRAM(raw string) (int, error) {
	in := ramInput{MB: strings.TrimSpace(raw)}
	if err := check(in); err != nil {
		return 0, err
	}
	mb, err := strconv.Atoi(in.MB)
	if err != nil {
		return 0, apperrors.NewValidationError(validationMessages["MB"])
	}
	return mb, nil
}

// ParseModeratorID validates a moderator user id.
func ParseModeratorID(raw string) (string, error) {
	in := moderatorInput{ID: strings.TrimSpace(raw)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.ID, nil
}

// ParseName validates a new display name.
func ParseName(raw string) (string, error) {
	in := nameInput{Name: strings.TrimSpace(raw)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.Name, nil
}

// ParseAvatarURL validates a new avatar URL.
func ParseAvatarURL(raw string) (string, error) {
	in := avatarInput{URL: strings.TrimSpace(raw)}
	if err := check(in); err != nil {
		return "", err
	}
	return in.URL, nil
}

// ConfirmDeletion checks that typed repeats appID exactly.
func ConfirmDeletion(appID, typed string) error {
	return check(deleteInput{Expected: appID, Typed: strings.TrimSpace(typed)})
}

// ParsePermissions validates a permission multi-select.
func ParsePermissions(values []string) (hosting.PermSet, error) {
	if err := check(permsInput{Perms: values}); err != nil {
		return nil, err
	}
	set, _ := hosting.ParsePermSet(values)
	return set, nil
}

func ramForm(app hosting.Application) Form {
	return Form{
		Submit: ActionRAMSubmit,
		Arg:    app.ID,
		Title:  "Change RAM",
		Fields: []FormField{{
			ID: FieldRAM, Label: "New RAM amount (MB)", Placeholder: "e.g. 512",
			MinLength: 2, MaxLength: 5, Required: true,
		}},
	}
}

func renameForm(app hosting.Application) Form {
	return Form{
		Submit: ActionRenameSubmit,
		Arg:    app.ID,
		Title:  "Rename application",
		Fields: []FormField{{
			ID: FieldName, Label: "New name", Value: Truncate(app.Name, 32),
			MinLength: 1, MaxLength: 32, Required: true,
		}},
	}
}

func avatarForm(app hosting.Application) Form {
	return Form{
		Submit: ActionAvatarSubmit,
		Arg:    app.ID,
		Title:  "Change avatar",
		Fields: []FormField{{
			ID: FieldAvatar, Label: "Image URL", Placeholder: "https://...", Value: app.AvatarURL,
			MaxLength: 512, Required: true,
		}},
	}
}

func deleteForm(app hosting.Application) Form {
	return Form{
		Submit: ActionDeleteSubmit,
		Arg:    app.ID,
		Title:  "Delete application",
		Fields: []FormField{{
			ID: FieldConfirm, Label: "Type the application ID to confirm", Placeholder: app.ID,
			MaxLength: 100, Required: true,
		}},
	}
}

func moderatorForm(app hosting.Application) Form {
	return Form{
		Submit: ActionModAddID,
		Arg:    app.ID,
		Title:  "Add moderator",
		Fields: []FormField{{
			ID: FieldModID, Label: "Moderator user ID", Placeholder: "123456789012345678",
			MinLength: 15, MaxLength: 20, Required: true,
		}},
	}
}

// moderatorArg binds a moderator id to the app it was picked for.
func moderatorArg(modID, appID string) string {
	return modID + "@" + appID
}

func splitModeratorArg(arg string) (modID, appID string) {
	modID, appID, _ = strings.Cut(arg, "@")
	return modID, appID
}

// permissionSelect builds the permission multi-select with current checked.
func permissionSelect(kind ActionKind, modID, appID string, current hosting.PermSet) *Control {
	c := &Control{
		Kind:        ControlSelect,
		Action:      kind,
		Arg:         moderatorArg(modID, appID),
		Placeholder: "Choose permissions...",
		MinValues:   1,
		MaxValues:   len(hosting.AllPermissions),
	}
	for _, p := range hosting.AllPermissions {
		c.Options = append(c.Options, Option{
			Label:   p.Label(),
			Value:   string(p),
			Default: current.Has(p),
		})
	}
	return c
}

func moderatorSelect(kind ActionKind, appID string, mods []hosting.Moderator, min, max int, placeholder string) *Control {
	c := &Control{
		Kind:        ControlSelect,
		Action:      kind,
		Arg:         appID,
		Placeholder: placeholder,
		MinValues:   min,
	}
	for i, m := range mods {
		if i == MaxOptions {
			break
		}
		c.Options = append(c.Options, Option{
			Label:       m.ID,
			Value:       m.ID,
			Description: Truncate(m.Perms.String(), 100),
		})
	}
	c.MaxValues = max
	if c.MaxValues > len(c.Options) {
		c.MaxValues = len(c.Options)
	}
	return c
}
