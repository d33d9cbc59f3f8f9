package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"unvocal/internal/models"
)

// StatusAction prints the current status of a single request.
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("a request ID is required")
	}

	app, err := NewAppContext(cmd)
	if err != nil {
		return err
	}

	report, err := app.Client.Status(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Status:   %s\n", report.Status)
	if report.Progress != "" {
		fmt.Printf("Progress: %s\n", report.Progress)
	}
	if report.Filename != "" {
		fmt.Printf("File:     %s\n", report.Filename)
		fmt.Printf("URL:      %s\n", report.OutputPath)
	}
	if report.ErrorMessage != "" {
		fmt.Printf("Error:    %s\n", report.ErrorMessage)
	}
	return nil
}

// JobsAction lists recent jobs on the backend.
func JobsAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(cmd)
	if err != nil {
		return err
	}

	jobs, err := app.Client.Jobs(ctx, cmd.String("status"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs")
		return nil
	}

	renderJobsTable(jobs)
	return nil
}

// StatsAction prints the number of jobs per status.
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(cmd)
	if err != nil {
		return err
	}

	counts, err := app.Client.Stats(ctx)
	if err != nil {
		return err
	}

	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Status", "Jobs")
	for _, status := range statuses {
		table.Append(status, fmt.Sprintf("%d", counts[status]))
	}
	table.Render()
	return nil
}

func renderJobsTable(jobs []models.VocalJob) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Request ID", "Status", "URL", "Progress", "Created At")

	for _, job := range jobs {
		progress := job.Progress
		if job.Status == models.JobStatusError {
			progress = job.ErrorMessage
		}
		table.Append(
			job.ID,
			job.Status,
			truncateString(job.YouTubeURL, 40),
			truncateString(progress, 50),
			job.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	table.Render()
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
