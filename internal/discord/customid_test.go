package discord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hostpanel/internal/dashboard"
)

const testSession = "0b6f5a1e-3c3d-4a4e-9d0e-5b7a1c2d3e4f"

func TestEncodeCustomID(t *testing.T) {
	id, err := EncodeCustomID(testSession, dashboard.ActionNavigate, "logs")
	require.NoError(t, err)
	assert.Equal(t, "hp|"+testSession+"|nav|logs", id)

	id, err = EncodeCustomID(testSession, dashboard.ActionRefresh, "")
	require.NoError(t, err)
	assert.Equal(t, "hp|"+testSession+"|refresh|", id)
}

func TestEncodeCustomIDRejects(t *testing.T) {
	tests := []struct {
		name    string
		session string
		kind    dashboard.ActionKind
		arg     string
	}{
		{"no session", "", dashboard.ActionRefresh, ""},
		{"no action", testSession, "", ""},
		{"separator in session", "a|b", dashboard.ActionRefresh, ""},
		{"too long", testSession, dashboard.ActionModEditPerms, strings.Repeat("9", 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeCustomID(tt.session, tt.kind, tt.arg)
			assert.Error(t, err)
		})
	}
}

func TestParseCustomID(t *testing.T) {
	id, err := EncodeCustomID(testSession, dashboard.ActionModEditPerms, "111111111111111111")
	require.NoError(t, err)

	got, err := ParseCustomID(id)
	require.NoError(t, err)
	assert.Equal(t, CustomID{Session: testSession, Kind: dashboard.ActionModEditPerms, Arg: "111111111111111111"}, got)

	got, err = ParseCustomID("hp|s1|nav|a|b")
	require.NoError(t, err)
	assert.Equal(t, "a|b", got.Arg, "arg keeps its separators")
}

func TestParseCustomIDRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"runtimecfg:select:key",
		"hp|s1|nav",
		"xx|s1|nav|home",
		"hp||nav|home",
		"hp|s1||home",
	} {
		_, err := ParseCustomID(raw)
		assert.Error(t, err, raw)
	}
}

func TestLongestControlIDFits(t *testing.T) {
	// A uuid session with the longest action and a 20 digit moderator id.
	id, err := EncodeCustomID(testSession, dashboard.ActionModRemoveChosen, strings.Repeat("1", 20))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(id), maxCustomID)

	// A permission select carries the moderator id and the app it belongs to.
	arg := strings.Repeat("1", 20) + "@" + strings.Repeat("2", 20)
	id, err = EncodeCustomID(testSession, dashboard.ActionModEditPerms, arg)
	require.NoError(t, err)
	got, err := ParseCustomID(id)
	require.NoError(t, err)
	assert.Equal(t, arg, got.Arg)
}
