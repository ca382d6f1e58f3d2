package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/hostpanel/internal/config"
	"github.com/zsiec/hostpanel/internal/dashboard"
	"github.com/zsiec/hostpanel/internal/deploy"
	"github.com/zsiec/hostpanel/internal/discord"
	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/health"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/server"
	"github.com/zsiec/hostpanel/pkg/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath(cmd))
		},
	}
}

func loadConfig(path string, offline bool) (*config.Config, error) {
	load := config.Load
	if offline {
		load = config.LoadOffline
	}
	cfg, err := load(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, err.Error(), http.StatusBadRequest)
	}
	return cfg, nil
}

func hostingOptions(cfg config.HostingConfig, log logger.Logger) hosting.Options {
	return hosting.Options{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Logger:         log,
	}
}

// sessionOptions carries the dashboard settings every panel shares.
func sessionOptions(cfg *config.Config, log *logrus.Logger) dashboard.Options {
	return dashboard.Options{
		RestartDelay:    cfg.Dashboard.RestartDelay,
		DashboardURL:    cfg.Hosting.DashboardURL,
		RestrictToOwner: cfg.Dashboard.RestrictToOwner,
		ExpiredHint:     fmt.Sprintf("Use /%s to open a new one.", cfg.Discord.CommandName),
		Logger:          logger.NewDashboardLogger(logger.Component(log, "dashboard")),
		Errors:          apperrors.NewErrorHandler(log),
	}
}

func runServe(ctx context.Context, path string) error {
	cfg, err := loadConfig(path, false)
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "failed to initialize logger", http.StatusBadRequest)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting HostPanel")
	log.WithField("config_path", path).Debug("Configuration loaded")

	watchConfig(path, log)

	client := newClient(hostingOptions(cfg.Hosting, logger.Component(log, "hosting")))
	deploySvc := deploy.NewService(client, cfg.Dashboard.MaxUploadSize, logger.Component(log, "deploy"))

	bot, err := discord.New(cfg.Discord, client, discord.Options{
		Registry: dashboard.RegistryOptions{
			Session:         sessionOptions(cfg, log),
			IdleTimeout:     cfg.Dashboard.IdleTimeout,
			JanitorInterval: cfg.Dashboard.JanitorInterval,
		},
		Deploy:  deploySvc,
		Fetcher: discord.NewFetcher(nil, cfg.Dashboard.MaxUploadSize),
		Logger:  logger.NewLogrusAdapter(logrus.NewEntry(log)),
	})
	if err != nil {
		return apperrors.WrapInternalError(err, "failed to create Discord bot")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		srv := server.New(&cfg.Server, &cfg.Metrics, log,
			health.NewHostingChecker(client),
			health.NewGatewayChecker(bot.Ready),
		)
		srv.SetStats(func() map[string]interface{} {
			return map[string]interface{}{"dashboards_open": bot.Registry().Len()}
		})
		g.Go(func() error { return srv.Start(gctx) })
	}

	g.Go(func() error { return bot.Run(gctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("HostPanel stopped with error")
		return err
	}
	log.Info("HostPanel stopped")
	return nil
}

// watchConfig applies logging level edits without a restart. Other settings
// are read once at startup.
func watchConfig(path string, log *logrus.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(path, func(cfg *config.Config) {
		if err := logger.SetLevel(log, cfg.Logging.Level); err != nil {
			log.WithError(err).Warn("Ignoring logging level from reloaded config")
			return
		}
		log.WithField("level", cfg.Logging.Level).Info("Configuration reloaded")
	}, func(err error) {
		log.WithError(err).Warn("Ignoring invalid config edit")
	})
	if err != nil {
		log.WithError(err).Warn("Config hot reload disabled")
	}
}
