package termview

import "github.com/charmbracelet/lipgloss"

// Dark palette shared by every preview.
var (
	Text       = lipgloss.Color("#E0E0E0")
	TextBright = lipgloss.Color("#FFFFFF")
	Muted      = lipgloss.Color("#90A4AE")
	BorderDark = lipgloss.Color("#30363D")
	PanelBg    = lipgloss.Color("#161B26")

	Primary = lipgloss.Color("#5865F2")
	Success = lipgloss.Color("#4CAF50")
	Danger  = lipgloss.Color("#F44336")
	Neutral = lipgloss.Color("#4E5058")
)

var (
	FieldNameStyle = lipgloss.NewStyle().
			Foreground(TextBright).
			Bold(true)

	FieldValueStyle = lipgloss.NewStyle().
			Foreground(Text)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(TextBright).
			Padding(0, 1).
			MarginRight(1)

	DisabledStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Faint(true).
			Padding(0, 1).
			MarginRight(1)

	SelectStyle = lipgloss.NewStyle().
			Foreground(Text).
			Border(lipgloss.NormalBorder()).
			BorderForeground(BorderDark).
			Padding(0, 1)
)
