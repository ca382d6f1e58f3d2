package dashboard

import "strings"

// benignConflict is the vocabulary for provider replies that mean "the app
// is already where you asked it to be". A reply matches when it contains one
// marker and one state term, ignoring case. Anything else is a hard failure.
var benignConflict = struct {
	markers []string
	states  []string
}{
	markers: []string{
		"already",
		"já está",
		"ja esta",
		"já se encontra",
	},
	states: []string{
		"online",
		"offline",
		"running",
		"stopped",
		"started",
		"ligado",
		"desligado",
		"iniciado",
		"parado",
	},
}

// IsBenignConflict reports whether err says the requested lifecycle state is
// already in effect.
func IsBenignConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return containsAny(msg, benignConflict.markers) && containsAny(msg, benignConflict.states)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// providerWording rewrites technical names in provider messages.
var providerWording = strings.NewReplacer(
	"ramMB", "RAM",
	"ramMb", "RAM",
	"appID", "app ID",
)

func humanize(msg string) string {
	return providerWording.Replace(msg)
}
