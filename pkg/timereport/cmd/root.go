package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timereport/timereport-cli/pkg/system"
	"github.com/timereport/timereport-cli/pkg/timereport/auth"
	"github.com/timereport/timereport-cli/pkg/timereport/config"
	"github.com/timereport/timereport-cli/pkg/timereport/credentials"
	"github.com/timereport/timereport-cli/pkg/timereport/output"
)

// ErrNotLoggedIn is returned by commands that need a stored credential. The
// command has already told the operator by the time it is returned.
var ErrNotLoggedIn = errors.New("not logged in")

type Config struct {
	ConfigDir    string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	// Input is watched during login so Enter cancels the attempt.
	Input io.Reader
	// Browser replaces the system browser launcher.
	Browser auth.BrowserOpener
}

type runtimeState struct {
	configDir            string
	settings             *config.Settings
	outputFormat         string
	tokenStorageOverride string
	noBrowser            bool
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	input                io.Reader
	browser              auth.BrowserOpener
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigDir:    config.DefaultConfigDir(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
		Input:        os.Stdin,
		Browser:      auth.OpenSystemBrowser,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configDir: cfg.ConfigDir,
		writer:    cfg.OutputWriter,
		errWriter: cfg.ErrWriter,
		input:     cfg.Input,
		browser:   cfg.Browser,
	}

	root := &cobra.Command{
		Use:           "timereport",
		Short:         "CLI for timereport.app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.input == nil {
				rt.input = os.Stdin
			}
			if rt.configDir == "" {
				rt.configDir = config.DefaultConfigDir()
			}
			if !rt.verbose {
				rt.verbose, _ = strconv.ParseBool(os.Getenv("TIMEREPORT_VERBOSE"))
			}
			rt.log = system.NewCLILogger(rt.errWriter, rt.verbose)

			// Skip settings for commands that must work with a broken settings file
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			return rt.loadSettings()
		},
	}

	root.PersistentFlags().StringVar(&rt.configDir, "config-dir", rt.configDir, "Directory holding credentials and settings")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: text, json, yaml")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().BoolVar(&rt.noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewWhoamiCommand(),
		NewStartCommand(),
		NewStopCommand(),
		NewPauseCommand(),
		NewResumeCommand(),
		NewLogCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) loadSettings() error {
	settings, err := config.Load(config.SettingsPath(rt.configDir))
	if err != nil {
		return err
	}
	settings.ApplyEnv()
	if rt.tokenStorageOverride != "" {
		settings.TokenStorage = rt.tokenStorageOverride
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	rt.settings = settings
	return nil
}

func (rt *runtimeState) Settings() *config.Settings {
	if rt.settings == nil {
		defaults := config.DefaultSettings()
		rt.settings = &defaults
	}
	return rt.settings
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	return output.ParseFormat(strings.ToLower(rt.outputFormat))
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	return rt.Settings().TokenStorage
}

func (rt *runtimeState) NoBrowser() bool {
	return rt.noBrowser || rt.Settings().NoBrowser
}

// ListenAddr is the loopback address the login callback server binds.
func (rt *runtimeState) ListenAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(rt.Settings().CallbackPort))
}

func (rt *runtimeState) Store() (credentials.Store, error) {
	return credentials.NewStore(rt.TokenStorage(), config.CredentialPath(rt.configDir))
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Printer() *output.Printer {
	return output.NewPrinter(rt.Writer())
}

// ErrPrinter writes to stderr, for failures the operator has to act on.
func (rt *runtimeState) ErrPrinter() *output.Printer {
	if rt.errWriter != nil {
		return output.NewPrinter(rt.errWriter)
	}
	return output.NewPrinter(os.Stderr)
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		return zap.NewNop().Sugar()
	}
	return rt.log
}

// requireCredential returns the stored credential or reports that the
// operator has to log in first.
func (rt *runtimeState) requireCredential() (credentials.Credential, error) {
	store, err := rt.Store()
	if err != nil {
		return credentials.Credential{}, err
	}
	cred, ok, err := store.Read()
	if err != nil {
		return credentials.Credential{}, err
	}
	if !ok {
		rt.ErrPrinter().Error("Not logged in. Run `timereport login` first.")
		return credentials.Credential{}, ErrNotLoggedIn
	}
	return cred, nil
}
