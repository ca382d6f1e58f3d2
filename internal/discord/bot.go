// Package discord connects dashboards to Discord: it registers the slash
// commands, turns component and modal interactions into dashboard actions,
// and draws panels as embeds with components.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/hostpanel/internal/config"
	"github.com/zsiec/hostpanel/internal/dashboard"
	"github.com/zsiec/hostpanel/internal/deploy"
	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
	"github.com/zsiec/hostpanel/internal/reconnect"
)

// Options wire a Bot to the rest of the process.
type Options struct {
	Registry dashboard.RegistryOptions
	Deploy   *deploy.Service
	Fetcher  *Fetcher
	Logger   logger.Logger

	// ActionTimeout bounds one interaction, including any remote calls.
	ActionTimeout time.Duration
}

// Bot is the Discord front end of the dashboard registry.
type Bot struct {
	cfg      config.DiscordConfig
	registry *dashboard.Registry
	deploy   *deploy.Service
	fetch    *Fetcher
	errs     *apperrors.ErrorHandler
	log      logger.Logger
	timeout  time.Duration

	session *discordgo.Session
	api     api
	panels  *panelIndex

	ready atomic.Bool

	ctxMu sync.RWMutex
	ctx   context.Context
}

// New creates a bot for cfg. Nothing connects until Run.
func New(cfg config.DiscordConfig, client hosting.Client, opts Options) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	b := newBot(cfg, client, s, opts)
	b.session = s
	return b, nil
}

func newBot(cfg config.DiscordConfig, client hosting.Client, a api, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = logger.NewNullLogger()
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 2 * time.Minute
	}
	if opts.Deploy == nil {
		opts.Deploy = deploy.NewService(client, 0, opts.Logger)
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewFetcher(nil, opts.Deploy.MaxSize())
	}
	errs := opts.Registry.Session.Errors
	if errs == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		errs = apperrors.NewErrorHandler(quiet)
		opts.Registry.Session.Errors = errs
	}

	b := &Bot{
		cfg:     cfg,
		deploy:  opts.Deploy,
		fetch:   opts.Fetcher,
		errs:    errs,
		log:     opts.Logger.WithField("component", "discord"),
		timeout: opts.ActionTimeout,
		api:     a,
		panels:  newPanelIndex(),
		ctx:     context.Background(),
	}

	onExpire := opts.Registry.OnExpire
	opts.Registry.OnExpire = func(s *dashboard.Session, final dashboard.Panel) {
		b.expirePanel(s, final)
		if onExpire != nil {
			onExpire(s, final)
		}
	}
	b.registry = dashboard.NewRegistry(client, opts.Registry)
	return b
}

// Registry returns the live dashboards.
func (b *Bot) Registry() *dashboard.Registry { return b.registry }

// Ready reports whether the gateway session is up.
func (b *Bot) Ready() bool { return b.ready.Load() }

// Run connects, registers commands and serves interactions until ctx is
// done. Open panels are expired before the gateway closes.
func (b *Bot) Run(ctx context.Context) error {
	if b.session == nil {
		return errors.New("bot has no discord session")
	}
	b.ctxMu.Lock()
	b.ctx = ctx
	b.ctxMu.Unlock()

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(func(*discordgo.Session, *discordgo.Disconnect) {
		b.ready.Store(false)
		b.log.Warn("Discord gateway disconnected")
	})
	b.session.AddHandler(func(*discordgo.Session, *discordgo.Resumed) {
		b.ready.Store(true)
		b.log.Info("Discord gateway resumed")
	})

	if err := b.connect(ctx); err != nil {
		return err
	}
	defer func() {
		b.ready.Store(false)
		if err := b.session.Close(); err != nil {
			b.log.WithError(err).Warn("Failed to close discord session")
		}
	}()

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.registry.Run(ctx)
	return nil
}

func (b *Bot) connect(ctx context.Context) error {
	strategy := reconnect.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, 5)
	hooks := reconnect.Hooks{
		OnRetry: func(attempt int, err error, delay time.Duration) {
			metrics.RecordGatewayConnect(false)
			b.log.WithError(err).WithFields(map[string]interface{}{
				"attempt":  attempt,
				"retry_in": delay,
			}).Warn("Discord gateway connect failed")
		},
	}
	err := reconnect.Retry(ctx, strategy, b.log, hooks, func(context.Context) error {
		err := b.session.Open()
		if errors.Is(err, discordgo.ErrWSAlreadyOpen) {
			return nil
		}
		return err
	})
	if err != nil {
		metrics.RecordGatewayConnect(false)
		return apperrors.Wrap(err, apperrors.ErrorTypeServiceDown, "Discord gateway unavailable", http.StatusServiceUnavailable)
	}
	metrics.RecordGatewayConnect(true)
	return nil
}

func (b *Bot) registerCommands() error {
	if b.session.State == nil || b.session.State.User == nil {
		return errors.New("discord session has no application user")
	}
	cmds := commands(b.cfg.CommandName)
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, cmds); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	scope := "global"
	if b.cfg.GuildID != "" {
		scope = "guild " + b.cfg.GuildID
	}
	b.log.WithFields(map[string]interface{}{"commands": len(cmds), "scope": scope}).Info("Slash commands registered")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	if b.cfg.StatusText != "" {
		if err := s.UpdateGameStatus(0, b.cfg.StatusText); err != nil {
			b.log.WithError(err).Warn("Failed to set presence")
		}
	}
	b.log.WithField("user", r.User.String()).Info("Discord gateway ready")
}

func (b *Bot) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	b.ctxMu.RLock()
	parent := b.ctx
	b.ctxMu.RUnlock()

	ctx, cancel := context.WithTimeout(parent, b.timeout)
	defer cancel()
	b.handle(ctx, ic.Interaction)
}

// panelIndex maps session ids to the message that shows them.
type panelIndex struct {
	mu   sync.Mutex
	refs map[string]*panelRef
}

func newPanelIndex() *panelIndex {
	return &panelIndex{refs: make(map[string]*panelRef)}
}

func (x *panelIndex) put(session string, ref *panelRef) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.refs[session] = ref
}

func (x *panelIndex) get(session string) *panelRef {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.refs[session]
}

func (x *panelIndex) take(session string) *panelRef {
	x.mu.Lock()
	defer x.mu.Unlock()
	ref := x.refs[session]
	delete(x.refs, session)
	return ref
}

func (x *panelIndex) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.refs)
}
