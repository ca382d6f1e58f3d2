// Package cli is the hostpanel command line: serve runs the bot, preview
// draws a dashboard panel in the terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/pkg/version"
)

const defaultConfigPath = "configs/default.yaml"

// verbose controls extra error detail printing.
var verbose bool

// newClient builds the hosting client for a command. Tests swap it for a fake.
var newClient = func(opts hosting.Options) hosting.Client {
	return hosting.NewHTTPClient(opts)
}

// Execute runs the root command and maps the error, if any, to an exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, newRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		printUserFriendly(stderr, err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		return 2
	case apperrors.IsType(err, apperrors.ErrorTypeServiceDown) || apperrors.IsType(err, apperrors.ErrorTypeTimeout):
		return 69
	case apperrors.IsType(err, apperrors.ErrorTypeRemoteFailure):
		return 70
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hostpanel",
		Short:         "Discord dashboard for applications hosted on Discloud",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to configuration file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose error output")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPreviewCmd())
	cmd.AddCommand(newVersionCmd())

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.GetInfo().Short()

	return cmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func printUserFriendly(w io.Writer, err error) {
	if appErr, ok := apperrors.GetAppError(err); ok {
		fmt.Fprintf(w, "Error: %s\n", appErr.Message)
		if verbose {
			fmt.Fprintln(w, "Detail:", err)
		}
		switch appErr.Type {
		case apperrors.ErrorTypeServiceDown:
			fmt.Fprintln(w, "Hint: check network access to the hosting API and Discord.")
		case apperrors.ErrorTypeValidation:
			fmt.Fprintln(w, "Hint: tokens can also come from DISCORD_TOKEN and DISCLOUD_TOKEN.")
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
