package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timereport/timereport-cli/pkg/timereport/client"
	"github.com/timereport/timereport-cli/pkg/timereport/duration"
)

func NewStartCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "start <task>",
		Short: "Start a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := buildClient(rt)
			if err != nil {
				return err
			}
			projectID, found, err := resolveProject(cmd.Context(), rt, c, project)
			if err != nil || !found {
				return err
			}
			task := args[0]
			if err := c.Timers().Start(cmd.Context(), task, projectID); err != nil {
				return fmt.Errorf("failed to start timer: %w", err)
			}
			rt.Printer().Success("Timer started: %s%s", task, projectSuffix(project))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name")
	return cmd
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop active timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := buildClient(rt)
			if err != nil {
				return err
			}
			active, err := c.Timers().Active(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch active timer: %w", err)
			}
			if active == nil {
				rt.Printer().Info("No active timer.")
				return nil
			}
			elapsed, err := c.Timers().Stop(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to stop timer: %w", err)
			}
			rt.Printer().Success("Timer stopped: %s (%s)", active.TaskName, duration.Format(elapsed))
			return nil
		},
	}
}

func NewPauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause active timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return toggleTimer(cmd, client.TimerPaused)
		},
	}
}

func NewResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume paused timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return toggleTimer(cmd, client.TimerRunning)
		},
	}
}

// toggleTimer moves the active timer to target, doing nothing when it is
// already there.
func toggleTimer(cmd *cobra.Command, target string) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	c, err := buildClient(rt)
	if err != nil {
		return err
	}
	active, err := c.Timers().Active(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch active timer: %w", err)
	}
	if active == nil {
		rt.Printer().Info("No active timer.")
		return nil
	}
	if active.Status == target {
		rt.Printer().Info("Timer is already %s.", target)
		return nil
	}

	if target == client.TimerPaused {
		if err := c.Timers().Pause(cmd.Context()); err != nil {
			return fmt.Errorf("failed to pause timer: %w", err)
		}
		rt.Printer().Warn("Timer paused: %s", active.TaskName)
		return nil
	}
	if err := c.Timers().Resume(cmd.Context()); err != nil {
		return fmt.Errorf("failed to resume timer: %w", err)
	}
	rt.Printer().Success("Timer resumed: %s", active.TaskName)
	return nil
}

// resolveProject maps a project name to its ID. An unknown name is reported
// to the operator with the available names and found is false.
func resolveProject(ctx context.Context, rt *runtimeState, c *client.Client, name string) (id string, found bool, err error) {
	if name == "" {
		return "", true, nil
	}
	project, err := c.Projects().Resolve(ctx, name)
	var notFound *client.ProjectNotFoundError
	if errors.As(err, &notFound) {
		rt.ErrPrinter().Error("Project not found: %q", name)
		if len(notFound.Available) > 0 {
			rt.Printer().Info("Available: %s", strings.Join(notFound.Available, ", "))
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to list projects: %w", err)
	}
	return project.ID, true, nil
}

func projectSuffix(project string) string {
	if project == "" {
		return ""
	}
	return " (" + project + ")"
}
