package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timereport/timereport-cli/pkg/timereport/auth"
	"github.com/timereport/timereport-cli/pkg/timereport/output"
)

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in via browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			timeout, err := rt.Settings().LoginTimeoutDuration()
			if err != nil {
				return err
			}
			var opener auth.BrowserOpener
			if !rt.NoBrowser() {
				opener = rt.browser
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := rt.Printer()
			flow, err := auth.NewFlow(auth.FlowConfig{
				Store:      store,
				AppURL:     rt.Settings().AppURL,
				ListenAddr: rt.ListenAddr(),
				Timeout:    timeout,
				Input:      rt.input,
				Browser:    opener,
				Printer:    p,
				Log:        rt.Logger(),
			})
			if err != nil {
				return err
			}
			outcome, err := flow.Run(ctx)
			return reportLogin(rt, outcome, err)
		},
	}
}

// reportLogin turns the result of a login attempt into one line for the
// operator. Expected failures are not command errors.
func reportLogin(rt *runtimeState, outcome auth.Outcome, err error) error {
	p := rt.Printer()
	var portErr *auth.PortInUseError
	switch {
	case errors.As(err, &portErr):
		rt.ErrPrinter().Error("Failed to start callback server: %v", portErr.Err)
		return nil
	case errors.Is(err, auth.ErrBrowserLaunch):
		rt.ErrPrinter().Error("%v", err)
		p.Info("Run `timereport login --no-browser` and open the URL yourself.")
		return nil
	case err != nil:
		return err
	}

	switch outcome.Kind {
	case auth.OutcomeSuccess:
		p.Success("%s", outcome.Message())
	case auth.OutcomeAlreadyAuthenticated:
		p.Warn("%s", outcome.Message())
	case auth.OutcomeCancelled:
		p.Info("%s", outcome.Message())
	default:
		rt.ErrPrinter().Error("%s", outcome.Message())
	}
	return nil
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			_, ok, err := store.Read()
			if err != nil {
				rt.Logger().Warnw("Stored credential is unreadable, removing it", "error", err)
			} else if !ok {
				rt.Printer().Warn("Not logged in.")
				return nil
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to remove credential: %w", err)
			}
			rt.Printer().Success("Logged out.")
			return nil
		},
	}
}

type whoamiView struct {
	LoggedIn  bool   `json:"loggedIn" yaml:"loggedIn"`
	ServerURL string `json:"serverURL,omitempty" yaml:"serverURL,omitempty"`
	Storage   string `json:"storage" yaml:"storage"`
}

func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show which backend the stored credential belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			cred, ok, err := store.Read()
			if err != nil {
				return err
			}
			view := whoamiView{LoggedIn: ok, ServerURL: cred.ServerURL, Storage: rt.TokenStorage()}
			if format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, view)
			}
			if !ok {
				rt.Printer().Warn("Not logged in.")
				return nil
			}
			rt.Printer().Plain("Logged in to %s (%s storage)", view.ServerURL, view.Storage)
			return nil
		},
	}
}
