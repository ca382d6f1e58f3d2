package dashboard

// ActionKind names what a control does. The string form travels inside
// component ids, so values are short and stable.
type ActionKind string

const (
	ActionSelectApp ActionKind = "select"
	ActionNavigate  ActionKind = "nav"
	ActionRefresh   ActionKind = "refresh"
	ActionRetry     ActionKind = "retry"
	ActionCancel    ActionKind = "cancel"

	ActionStart   ActionKind = "start"
	ActionStop    ActionKind = "stop"
	ActionRestart ActionKind = "restart"
	ActionBackup  ActionKind = "backup"

	ActionRAMForm      ActionKind = "ram"
	ActionRAMSubmit    ActionKind = "ram_submit"
	ActionRenameForm   ActionKind = "rename"
	ActionRenameSubmit ActionKind = "rename_submit"
	ActionAvatarForm   ActionKind = "avatar"
	ActionAvatarSubmit ActionKind = "avatar_submit"
	ActionDeleteForm   ActionKind = "delete"
	ActionDeleteSubmit ActionKind = "delete_submit"

	ActionModAddForm      ActionKind = "mod_add"
	ActionModAddID        ActionKind = "mod_add_id"
	ActionModAddPerms     ActionKind = "mod_add_perms"
	ActionModEditPick     ActionKind = "mod_edit"
	ActionModEditChosen   ActionKind = "mod_edit_pick"
	ActionModEditPerms    ActionKind = "mod_edit_perms"
	ActionModRemovePick   ActionKind = "mod_rm"
	ActionModRemoveChosen ActionKind = "mod_rm_pick"
	ActionModRemoveApply  ActionKind = "mod_rm_apply"
)

// OpensForm reports whether k answers with a modal form. Chat adapters must
// not acknowledge such interactions before dispatching them.
func (k ActionKind) OpensForm() bool {
	switch k {
	case ActionRAMForm, ActionRenameForm, ActionAvatarForm, ActionDeleteForm, ActionModAddForm:
		return true
	}
	return false
}

// Action is one user interaction with a panel.
type Action struct {
	Kind   ActionKind
	Arg    string
	Values []string          // selected option values
	Fields map[string]string // submitted form fields by id
	UserID string
}

// Field returns the submitted value of form field id.
func (a Action) Field(id string) string {
	if a.Fields == nil {
		return ""
	}
	return a.Fields[id]
}
