package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmvoice/jobsync/internal/eta"
	"github.com/filmvoice/jobsync/internal/types"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID            string `json:"id"`
	Title         string `json:"title,omitempty"`
	Status        string `json:"status"`
	Progress      int    `json:"progress,omitempty"`
	QueuePosition int    `json:"queue_position,omitempty"`
	Error         string `json:"error,omitempty"`
	Updated       string `json:"updated"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs []jobOutput `json:"jobs"`
}

func toJobOutput(job types.Job, now time.Time) jobOutput {
	return jobOutput{
		ID:            string(job.ID),
		Title:         job.MovieTitle,
		Status:        job.Status.String(),
		Progress:      job.Progress,
		QueuePosition: job.QueuePosition,
		Error:         job.ErrorMessage,
		Updated:       eta.FormatRelativeTime(job.UpdatedAt, now),
	}
}

func init() {
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(getJobCmd)

	getJobCmd.Flags().StringP("id", "i", "", "Job ID to fetch")
	_ = getJobCmd.MarkFlagRequired("id")
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the session's jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		jobs, err := apiClient.GetJobs(context.Background())
		if err != nil {
			return fmt.Errorf("error fetching jobs: %w", err)
		}

		now := time.Now()
		output := jobListOutput{
			Jobs: make([]jobOutput, len(jobs)),
		}
		for i, job := range jobs {
			output.Jobs[i] = toJobOutput(job, now)
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a specific job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetString("id")

		job, err := apiClient.GetJob(context.Background(), types.JobID(jobID))
		if err != nil {
			return fmt.Errorf("error fetching job: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(toJobOutput(job, time.Now()), "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}
