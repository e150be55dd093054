package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timereport/timereport-cli/pkg/timereport/config"
	"github.com/timereport/timereport-cli/pkg/timereport/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage timereport settings",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigSetValueCommand(),
		newConfigPathCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := config.SettingsPath(rt.configDir)
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("settings already exist: %s", path)
				}
			}
			settings := config.DefaultSettings()
			if err := config.Save(path, &settings); err != nil {
				return err
			}
			rt.Printer().Success("Initialized settings at %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing settings")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective settings",
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
			if format == output.FormatText {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.Settings())
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a value in the settings file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := config.SettingsPath(rt.configDir)
			// Environment and flag overrides must not leak into the file.
			settings, err := config.Load(path)
			if err != nil {
				return err
			}
			key := args[0]
			value := args[1]
			switch key {
			case "app-url":
				settings.AppURL = value
			case "callback-port":
				port, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid callback port: %s", value)
				}
				settings.CallbackPort = port
			case "login-timeout":
				settings.LoginTimeout = value
			case "request-timeout":
				settings.RequestTimeout = value
			case "token-storage":
				settings.TokenStorage = value
			case "no-browser":
				noBrowser, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid boolean: %s", value)
				}
				settings.NoBrowser = noBrowser
			default:
				return fmt.Errorf("unsupported key: %s", key)
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			return config.Save(path, settings)
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings and credential file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			p := rt.Printer()
			p.Plain("settings:   %s", config.SettingsPath(rt.configDir))
			p.Plain("credential: %s", config.CredentialPath(rt.configDir))
			return nil
		},
	}
}
