package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/storyforge/internal/app"
	"github.com/kiranshivaraju/storyforge/internal/story"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// NewStoryCommand creates the story command.
func NewStoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story",
		Short: "Inspect stored stories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <story-id>",
		Short: "Print a complete story tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid story id %q", args[0])
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				cs, err := a.Stories().Complete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), cs)
				}
				return printStory(cmd.OutOrStdout(), cs)
			})
		},
	})

	return cmd
}

// NewJobCommand creates the job command.
func NewJobCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect generation jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				job, err := a.Generation(nil).GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJob(cmd.OutOrStdout(), rootOpts.Format, job)
			})
		},
	})

	return cmd
}

func printJob(w io.Writer, format string, job *models.Job) error {
	if format == "json" {
		return writeJSON(w, job)
	}
	fmt.Fprintf(w, "job %s: %s\n", job.JobID, job.Status)
	if job.StoryID != nil {
		fmt.Fprintf(w, "  story: %d\n", *job.StoryID)
	}
	if job.Error != nil {
		fmt.Fprintf(w, "  error: %s\n", *job.Error)
	}
	return nil
}

func printStory(w io.Writer, cs *story.CompleteStory) error {
	fmt.Fprintf(w, "%s (#%d)\n", cs.Title, cs.ID)
	printNode(w, cs, cs.RootNode, 1)
	return nil
}

// printNode walks the tree depth first. Stories are trees so the walk ends.
func printNode(w io.Writer, cs *story.CompleteStory, n story.NodeResponse, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := ""
	switch {
	case n.IsWinningEnding:
		marker = " [win]"
	case n.IsEnding:
		marker = " [end]"
	}
	fmt.Fprintf(w, "%s%s%s\n", indent, n.Content, marker)
	for _, o := range n.Options {
		fmt.Fprintf(w, "%s-> %s\n", indent, o.Text)
		if next, ok := cs.AllNodes[o.NodeID]; ok {
			printNode(w, cs, next, depth+1)
		}
	}
}
