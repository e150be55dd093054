package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TimerRunning = "running"
	TimerPaused  = "paused"
)

// Timer is the active timer as the backend reports it. Times are Unix
// milliseconds.
type Timer struct {
	ID                  string  `json:"_id" yaml:"id"`
	TaskName            string  `json:"taskName" yaml:"taskName"`
	Status              string  `json:"status" yaml:"status"`
	ProjectID           string  `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	StartTime           float64 `json:"startTime" yaml:"startTime"`
	TotalPausedDuration float64 `json:"totalPausedDuration,omitempty" yaml:"totalPausedDuration,omitempty"`
}

type Project struct {
	ID   string `json:"_id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ManualEntry is a finished block of time logged after the fact.
type ManualEntry struct {
	TaskName        string
	TaskDescription string
	ProjectID       string
	Start           time.Time
	End             time.Time
}

// ProjectNotFoundError lists the names that would have matched.
type ProjectNotFoundError struct {
	Name      string
	Available []string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found: %q", e.Name)
}

type TimerService struct {
	client *Client
}

func (c *Client) Timers() *TimerService {
	return &TimerService{client: c}
}

// Active returns the running or paused timer, or nil when there is none.
func (s *TimerService) Active(ctx context.Context) (*Timer, error) {
	var timer *Timer
	if err := s.client.Query(ctx, "timers:getActiveTimer", nil, &timer); err != nil {
		return nil, err
	}
	return timer, nil
}

func (s *TimerService) Start(ctx context.Context, taskName, projectID string) error {
	args := struct {
		TaskName  string `json:"taskName"`
		ProjectID string `json:"projectId,omitempty"`
	}{TaskName: taskName, ProjectID: projectID}
	return s.client.Mutation(ctx, "timers:startTimer", args, nil)
}

// Stop ends the active timer and returns the tracked duration.
func (s *TimerService) Stop(ctx context.Context) (time.Duration, error) {
	var result struct {
		Duration float64 `json:"duration"`
	}
	if err := s.client.Mutation(ctx, "timers:stopTimer", nil, &result); err != nil {
		return 0, err
	}
	return time.Duration(result.Duration) * time.Millisecond, nil
}

func (s *TimerService) Pause(ctx context.Context) error {
	return s.client.Mutation(ctx, "timers:pauseTimer", nil, nil)
}

func (s *TimerService) Resume(ctx context.Context) error {
	return s.client.Mutation(ctx, "timers:resumeTimer", nil, nil)
}

func (s *TimerService) LogEntry(ctx context.Context, entry ManualEntry) error {
	if strings.TrimSpace(entry.TaskName) == "" {
		return errors.New("task name is required")
	}
	if !entry.End.After(entry.Start) {
		return errors.New("entry must end after it starts")
	}
	args := struct {
		TaskName        string `json:"taskName"`
		TaskDescription string `json:"taskDescription"`
		ProjectID       string `json:"projectId,omitempty"`
		StartTime       int64  `json:"startTime"`
		EndTime         int64  `json:"endTime"`
	}{
		TaskName:        entry.TaskName,
		TaskDescription: entry.TaskDescription,
		ProjectID:       entry.ProjectID,
		StartTime:       entry.Start.UnixMilli(),
		EndTime:         entry.End.UnixMilli(),
	}
	return s.client.Mutation(ctx, "timers:createManualEntry", args, nil)
}

type ProjectService struct {
	client *Client
}

func (c *Client) Projects() *ProjectService {
	return &ProjectService{client: c}
}

func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := s.client.Query(ctx, "projects:getAllProjects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Resolve finds a project by name, ignoring case.
func (s *ProjectService) Resolve(ctx context.Context, name string) (Project, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return Project{}, err
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
		names = append(names, p.Name)
	}
	return Project{}, &ProjectNotFoundError{Name: name, Available: names}
}
