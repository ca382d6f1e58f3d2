package discord

import (
	"fmt"
	"strings"

	"github.com/zsiec/hostpanel/internal/dashboard"
)

const (
	idPrefix = "hp"
	idSep    = "|"

	// maxCustomID is the platform limit on component and modal ids.
	maxCustomID = 100
)

// CustomID addresses one control of one dashboard.
type CustomID struct {
	Session string
	Kind    dashboard.ActionKind
	Arg     string
}

// String encodes the id as hp|<session>|<action>|<arg>.
func (c CustomID) String() string {
	return strings.Join([]string{idPrefix, c.Session, string(c.Kind), c.Arg}, idSep)
}

// EncodeCustomID builds the component id for a control of session.
func EncodeCustomID(session string, kind dashboard.ActionKind, arg string) (string, error) {
	if session == "" || kind == "" {
		return "", fmt.Errorf("custom id needs a session and an action")
	}
	if strings.Contains(session, idSep) || strings.Contains(string(kind), idSep) {
		return "", fmt.Errorf("custom id parts must not contain %q", idSep)
	}
	id := CustomID{Session: session, Kind: kind, Arg: arg}.String()
	if len(id) > maxCustomID {
		return "", fmt.Errorf("custom id is %d bytes, the limit is %d", len(id), maxCustomID)
	}
	return id, nil
}

// ParseCustomID decodes an id produced by EncodeCustomID. The arg keeps any
// separators it contains.
func ParseCustomID(raw string) (CustomID, error) {
	parts := strings.SplitN(raw, idSep, 4)
	if len(parts) != 4 || parts[0] != idPrefix {
		return CustomID{}, fmt.Errorf("not a dashboard control: %q", raw)
	}
	if parts[1] == "" || parts[2] == "" {
		return CustomID{}, fmt.Errorf("incomplete dashboard control id: %q", raw)
	}
	return CustomID{Session: parts[1], Kind: dashboard.ActionKind(parts[2]), Arg: parts[3]}, nil
}
