package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/zsiec/hostpanel/internal/hosting"
)

// accountClient is the part of hosting.Client the hosting check needs.
type accountClient interface {
	UserInfo(ctx context.Context) (*hosting.User, error)
}

// HostingChecker asks the hosting API for the account. Failures degrade the
// service: dashboards fall back to cached app lists.
type HostingChecker struct {
	client accountClient
}

func NewHostingChecker(client accountClient) *HostingChecker {
	return &HostingChecker{client: client}
}

func (c *HostingChecker) Name() string { return "hosting" }

func (c *HostingChecker) Check(ctx context.Context) error {
	if _, err := c.client.UserInfo(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Degraded(fmt.Errorf("hosting API: %w", err))
	}
	return nil
}

// GatewayChecker reports the chat gateway connection. Without it no
// interaction reaches the bot, so a lost connection is down.
type GatewayChecker struct {
	ready func() bool
}

func NewGatewayChecker(ready func() bool) *GatewayChecker {
	return &GatewayChecker{ready: ready}
}

func (c *GatewayChecker) Name() string { return "discord" }

func (c *GatewayChecker) Check(context.Context) error {
	if !c.ready() {
		return errors.New("gateway not connected")
	}
	return nil
}
