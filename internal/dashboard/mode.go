package dashboard

import "fmt"

// Mode is the active dashboard tab.
type Mode int

const (
	ModeHome Mode = iota
	ModeStatus
	ModeControl
	ModeLogs
	ModeTools
	ModeModerators
)

// Modes lists every tab in navigation order.
var Modes = []Mode{ModeHome, ModeStatus, ModeControl, ModeLogs, ModeTools, ModeModerators}

func (m Mode) String() string {
	switch m {
	case ModeHome:
		return "home"
	case ModeStatus:
		return "status"
	case ModeControl:
		return "control"
	case ModeLogs:
		return "logs"
	case ModeTools:
		return "tools"
	case ModeModerators:
		return "moderators"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Label is the tab caption shown on navigation buttons.
func (m Mode) Label() string {
	switch m {
	case ModeHome:
		return "🏠 Home"
	case ModeStatus:
		return "📊 Status"
	case ModeControl:
		return "🎮 Control"
	case ModeLogs:
		return "📜 Logs"
	case ModeTools:
		return "🛠️ Tools"
	case ModeModerators:
		return "👥 Mods"
	default:
		return m.String()
	}
}

// ParseMode is the inverse of String.
func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if m.String() == s {
			return m, true
		}
	}
	return ModeHome, false
}
