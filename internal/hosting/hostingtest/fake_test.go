package hostingtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/hostpanel/internal/hosting"
)

func TestFakeLifecycle(t *testing.T) {
	ctx := context.Background()
	f := NewFake(hosting.Application{ID: "a1", Name: "Bot", Online: false, RAM: 256})

	_, err := f.Start(ctx, "a1")
	require.NoError(t, err)

	_, err = f.Start(ctx, "a1")
	var apiErr *hosting.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "already online")

	s, err := f.Status(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, s.Online())
	assert.Equal(t, "256MB", s.MemoryAvailable)

	assert.Equal(t, 2, f.Calls(MethodStart))
}

func TestFakeFailureInjection(t *testing.T) {
	ctx := context.Background()
	f := NewFake(hosting.Application{ID: "a1"})
	f.SetModerators("a1",
		hosting.Moderator{ID: "m1"},
		hosting.Moderator{ID: "m2"},
	)

	f.FailFor(MethodDeleteModerator, "m2", errors.New("permission denied"))
	_, err := f.DeleteModerator(ctx, "a1", "m1")
	require.NoError(t, err)
	_, err = f.DeleteModerator(ctx, "a1", "m2")
	assert.EqualError(t, err, "permission denied")

	f.Fail(MethodListApplications, errors.New("down"))
	_, err = f.ListApplications(ctx)
	assert.Error(t, err)
	f.Fail(MethodListApplications, nil)
	apps, err := f.ListApplications(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestFakeOnCallHoldsTheCall(t *testing.T) {
	f := NewFake(hosting.Application{ID: "a1"})
	release := make(chan struct{})
	entered := make(chan struct{})
	f.OnCall(MethodBackup, func(context.Context) {
		close(entered)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.Backup(context.Background(), "a1")
		done <- err
	}()

	<-entered
	assert.Equal(t, 1, f.Calls(MethodBackup))
	close(release)
	assert.NoError(t, <-done)
}

func TestFakeProfileAndDelete(t *testing.T) {
	ctx := context.Background()
	f := NewFake(hosting.Application{ID: "a1", Name: "Old", AvatarURL: "https://cdn/a.png"})

	_, err := f.UpdateProfile(ctx, "a1", "New", "https://cdn/a.png")
	require.NoError(t, err)
	app, ok := f.App("a1")
	require.True(t, ok)
	assert.Equal(t, "New", app.Name)

	_, err = f.DeleteApplication(ctx, "a1")
	require.NoError(t, err)
	_, err = f.ApplicationInfo(ctx, "a1")
	assert.True(t, hosting.IsNotFound(err))
}
