package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/storyforge/internal/app"
	"github.com/kiranshivaraju/storyforge/internal/queue"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Theme     string
	SessionID string
}

// NewGenerateCommand creates the generate command. It runs the whole job in
// the foreground instead of handing it to a queue.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a story and wait for the job to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Theme, "theme", "", "story theme")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to own the story (default: a new one)")
	_ = cmd.MarkFlagRequired("theme")

	return cmd
}

// captureDispatcher holds the submitted task so the caller can run it.
type captureDispatcher struct {
	task *queue.Task
}

func (d *captureDispatcher) Submit(_ context.Context, t queue.Task) error {
	d.task = &t
	return nil
}

func runGenerate(cmd *cobra.Command, rootOpts *RootOptions, opts *GenerateOptions) error {
	ctx := cmd.Context()
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return withApp(ctx, func(a *app.App) error {
		if err := a.Migrate(ctx); err != nil {
			return err
		}

		d := &captureDispatcher{}
		svc := a.Generation(d)

		job, err := svc.CreateJob(ctx, sessionID, opts.Theme)
		if err != nil {
			return err
		}
		if d.task == nil {
			return printJob(cmd.OutOrStdout(), rootOpts.Format, job)
		}

		svc.Run(ctx, *d.task)

		job, err = svc.GetJob(ctx, job.JobID)
		if err != nil {
			return err
		}
		if err := printJob(cmd.OutOrStdout(), rootOpts.Format, job); err != nil {
			return err
		}
		if job.Error != nil {
			return errors.New(*job.Error)
		}
		if job.StoryID == nil {
			return fmt.Errorf("job %s finished as %s without a story", job.JobID, job.Status)
		}
		return nil
	})
}
