package dashboard

// Severity orders notifications; higher wins when two are merged.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

// Icon is the emoji shown before a notification title.
func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "✅"
	case SeverityWarning:
		return "⚠️"
	case SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// Color is the accent of a notification shown on its own.
func (s Severity) Color() Color {
	switch s {
	case SeveritySuccess:
		return ColorGreen
	case SeverityWarning:
		return ColorGold
	case SeverityError:
		return ColorRed
	default:
		return ColorBlue
	}
}

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a message shown once, either on the next panel render or
// privately to the user who acted.
type Notification struct {
	Title    string
	Body     string
	Severity Severity
}

// merge folds o into n, keeping the more severe headline.
func (n Notification) merge(o Notification) Notification {
	head, tail := n, o
	if o.Severity > n.Severity {
		head, tail = o, n
	}
	body := head.Body
	if tail.Title != "" || tail.Body != "" {
		if body != "" {
			body += "\n\n"
		}
		body += "**" + tail.Title + "**\n" + tail.Body
	}
	return Notification{Title: head.Title, Body: body, Severity: head.Severity}
}
