package dashboard

import (
	"sync"

	"github.com/zsiec/hostpanel/internal/hosting"
)

// AppCache holds the last good application list. Profile edits are written
// through as overrides so renders reflect them before the provider does; a
// successful refresh replaces the list and drops every override.
type AppCache struct {
	mu        sync.Mutex
	apps      []hosting.Application
	loaded    bool
	overrides map[string]profileOverride
}

type profileOverride struct {
	name   *string
	avatar *string
}

// NewAppCache returns an empty cache.
func NewAppCache() *AppCache {
	return &AppCache{overrides: make(map[string]profileOverride)}
}

// Store records a successful refresh.
func (c *AppCache) Store(apps []hosting.Application) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps = append([]hosting.Application(nil), apps...)
	c.loaded = true
	c.overrides = make(map[string]profileOverride)
}

// Snapshot returns the cached list with overrides applied. The bool is false
// until the first Store.
func (c *AppCache) Snapshot() ([]hosting.Application, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]hosting.Application, len(c.apps))
	for i, a := range c.apps {
		if o, ok := c.overrides[a.ID]; ok {
			if o.name != nil {
				a.Name = *o.name
			}
			if o.avatar != nil {
				a.AvatarURL = *o.avatar
			}
		}
		out[i] = a
	}
	return out, c.loaded
}

// SetName overrides the display name of appID.
func (c *AppCache) SetName(appID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := c.overrides[appID]
	o.name = &name
	c.overrides[appID] = o
}

// SetAvatar overrides the avatar URL of appID.
func (c *AppCache) SetAvatar(appID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := c.overrides[appID]
	o.avatar = &url
	c.overrides[appID] = o
}

// Remove drops appID, used after it was deleted.
func (c *AppCache) Remove(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.apps {
		if a.ID == appID {
			c.apps = append(c.apps[:i:i], c.apps[i+1:]...)
			break
		}
	}
	delete(c.overrides, appID)
}
