package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zsiec/hostpanel/internal/dashboard"
	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/termview"
)

const previewUser = "preview"

type previewOptions struct {
	mode  string
	app   string
	width int
}

func newPreviewCmd() *cobra.Command {
	var opts previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a dashboard panel in the terminal using live data",
		Long: `Preview opens a dashboard against the hosting API and prints the panel the
chat client would show. Only the hosting token is required.`,
		Example: `  hostpanel preview
  hostpanel preview --app my-bot --mode logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context(), configPath(cmd), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Tab to show: home, status, control, logs, tools or moderators (default status with --app, else home)")
	cmd.Flags().StringVarP(&opts.app, "app", "a", "", "Application id or name to select")
	cmd.Flags().IntVarP(&opts.width, "width", "w", termview.DefaultWidth, "Output width in columns")
	return cmd
}

// capture keeps what a session would have sent to the chat client.
type capture struct {
	panel dashboard.Panel
	notes []dashboard.Notification
}

func (c *capture) ShowPanel(_ context.Context, p dashboard.Panel) error {
	c.panel = p
	return nil
}

func (c *capture) Notify(_ context.Context, n dashboard.Notification) error {
	c.notes = append(c.notes, n)
	return nil
}

func (c *capture) OpenForm(context.Context, dashboard.Form) error { return nil }

func (c *capture) Prompt(context.Context, dashboard.Prompt) error { return nil }

func runPreview(ctx context.Context, path string, opts previewOptions, out io.Writer) error {
	var mode *dashboard.Mode
	if opts.mode != "" {
		m, ok := dashboard.ParseMode(opts.mode)
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown mode %q", opts.mode))
		}
		mode = &m
	}

	cfg, err := loadConfig(path, true)
	if err != nil {
		return err
	}

	// Logs go to stderr so the panel can be piped.
	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	logCfg.Format = "text"
	logCfg.Level = "warn"
	if verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(&logCfg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "failed to initialize logger", http.StatusBadRequest)
	}

	client := newClient(hostingOptions(cfg.Hosting, logger.Component(log, "hosting")))

	sessOpts := sessionOptions(cfg, log)
	sessOpts.RestrictToOwner = false
	sess := dashboard.NewSession(previewUser, dashboard.Owner{ID: previewUser, Name: previewUser}, client, sessOpts)

	c := &capture{}
	err = preview(ctx, sess, c, mode, opts.app)

	for _, n := range c.notes {
		fmt.Fprintln(out, termview.RenderNotification(n, opts.width))
		fmt.Fprintln(out)
	}
	if c.panel.Title != "" {
		fmt.Fprintln(out, termview.Render(c.panel, opts.width))
	}
	return err
}

// preview opens sess, selects app and switches to mode. A nil mode keeps the
// tab the selection lands on.
func preview(ctx context.Context, sess *dashboard.Session, p dashboard.Presenter, mode *dashboard.Mode, app string) error {
	if err := sess.Open(ctx, p); err != nil {
		return err
	}

	if app != "" {
		id, err := resolveApp(sess.Snapshot(), app)
		if err != nil {
			return err
		}
		if err := sess.Dispatch(ctx, p, dashboard.Action{Kind: dashboard.ActionSelectApp, Values: []string{id}, UserID: previewUser}); err != nil {
			return err
		}
	}

	if mode == nil || *mode == sess.Snapshot().Mode {
		return nil
	}
	return sess.Dispatch(ctx, p, dashboard.Action{Kind: dashboard.ActionNavigate, Arg: mode.String(), UserID: previewUser})
}

// resolveApp matches ref against app ids first, then names ignoring case.
func resolveApp(st dashboard.State, ref string) (string, error) {
	if _, ok := st.App(ref); ok {
		return ref, nil
	}
	for _, a := range st.Apps {
		if strings.EqualFold(a.Name, ref) {
			return a.ID, nil
		}
	}
	return "", apperrors.NewNotFoundError("application " + ref)
}
