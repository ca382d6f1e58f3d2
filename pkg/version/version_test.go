package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.0.0",
		GitCommit: "abc123",
		BuildTime: "2024-01-01",
		GoVersion: "go1.21",
		OS:        "linux",
		Arch:      "amd64",
	}

	str := info.String()
	assert.Contains(t, str, "HostPanel 1.0.0")
	assert.Contains(t, str, "commit: abc123")
	assert.Contains(t, str, "built: 2024-01-01")
	assert.Contains(t, str, "go: go1.21")
	assert.Contains(t, str, "os/arch: linux/amd64")
}

func TestInfoShort(t *testing.T) {
	info := Info{Version: "1.0.0"}
	assert.Equal(t, "HostPanel 1.0.0", info.Short())
}

func TestUserAgent(t *testing.T) {
	info := Info{Version: "2.3.4", OS: "linux", Arch: "arm64"}

	ua := info.UserAgent()
	assert.Equal(t, "HostPanel/2.3.4 (linux/arm64)", ua)
	assert.False(t, strings.Contains(ua, " 2.3.4"))
}
