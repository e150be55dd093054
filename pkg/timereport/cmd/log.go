package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/timereport/timereport-cli/pkg/timereport/client"
	"github.com/timereport/timereport-cli/pkg/timereport/duration"
)

func NewLogCommand() *cobra.Command {
	var (
		project string
		task    string
	)

	cmd := &cobra.Command{
		Use:     "log <duration> <description>",
		Short:   "Log a manual time entry",
		Example: `  timereport log 1h30m "Feature work"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := buildClient(rt)
			if err != nil {
				return err
			}
			length, err := duration.Parse(args[0])
			if err != nil {
				return err
			}
			description := args[1]
			projectID, found, err := resolveProject(cmd.Context(), rt, c, project)
			if err != nil || !found {
				return err
			}

			taskName := task
			if taskName == "" {
				taskName = description
			}
			end := time.Now()
			entry := client.ManualEntry{
				TaskName:        taskName,
				TaskDescription: description,
				ProjectID:       projectID,
				Start:           end.Add(-length),
				End:             end,
			}
			if err := c.Timers().LogEntry(cmd.Context(), entry); err != nil {
				return fmt.Errorf("failed to log entry: %w", err)
			}
			rt.Printer().Success("Logged %s: %s%s", duration.Format(length), description, projectSuffix(project))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&task, "task", "t", "", "Task name (defaults to the description)")
	return cmd
}
