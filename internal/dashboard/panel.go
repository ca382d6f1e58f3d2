package dashboard

// Color is an RGB accent.
type Color int

const (
	ColorGreen  Color = 0x50F862
	ColorRed    Color = 0xE74C3C
	ColorBlue   Color = 0x3498DB
	ColorGold   Color = 0xF1C40F
	ColorDark   Color = 0x2B2D31
	ColorPurple Color = 0x9B59B6
)

// FieldLimit is the longest value a single panel field may hold.
const FieldLimit = 1000

// MaxOptions caps select menus.
const MaxOptions = 25

// Field is one titled block of a panel.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// ControlKind distinguishes buttons from menus.
type ControlKind int

const (
	ControlButton ControlKind = iota
	ControlSelect
	ControlLink
)

// ButtonStyle mirrors the usual chat button palette.
type ButtonStyle int

const (
	StyleSecondary ButtonStyle = iota
	StylePrimary
	StyleSuccess
	StyleDanger
)

// Option is one entry of a select control.
type Option struct {
	Label       string
	Value       string
	Description string
	Emoji       string
	Default     bool
}

// Control is an interactive element. Pressing it emits Action with Arg, and
// for selects the chosen option values.
type Control struct {
	Kind        ControlKind
	Action      ActionKind
	Arg         string
	Label       string
	Style       ButtonStyle
	URL         string
	Disabled    bool
	Placeholder string
	Options     []Option
	MinValues   int
	MaxValues   int
}

// ControlRow is one line of controls.
type ControlRow []Control

// Panel is one rendered screen of the dashboard.
type Panel struct {
	Title       string
	Description string
	Color       Color
	Thumbnail   string
	Fields      []Field
	Footer      string
	Rows        []ControlRow
}

// Disabled returns a copy of p with every interactive control disabled.
// Link controls keep working.
func (p Panel) Disabled() Panel {
	cp := p
	cp.Fields = append([]Field(nil), p.Fields...)
	cp.Rows = make([]ControlRow, len(p.Rows))
	for i, row := range p.Rows {
		r := make(ControlRow, len(row))
		for j, c := range row {
			if c.Kind != ControlLink {
				c.Disabled = true
			}
			r[j] = c
		}
		cp.Rows[i] = r
	}
	return cp
}
