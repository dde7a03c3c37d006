package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmvoice/jobsync/internal/eta"
	"github.com/filmvoice/jobsync/internal/types"
	"github.com/filmvoice/jobsync/pkg/jobsync"
)

func init() {
	watchCmd.Flags().Bool("refresh", false, "Force an immediate snapshot fetch on start")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow job updates live",
	Long: `watch opens the push connection and prints the session's job list every
time it changes, along with connection health and queue wait estimates.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("refresh")

		session, err := jobsync.NewSession(settings, authToken)
		if err != nil {
			return fmt.Errorf("error creating session: %w", err)
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Queue telemetry rides on push events; keep the latest for the
		// wait estimate. Updates and snapshot notifications arrive on
		// different goroutines, hence the lock.
		var telemetryMu sync.Mutex
		var telemetry *types.QueueTelemetry
		session.Transport.OnJobUpdate(func(u jobsync.JobUpdate) {
			if u.Telemetry != nil {
				telemetryMu.Lock()
				telemetry = u.Telemetry
				telemetryMu.Unlock()
			}
		})
		session.Transport.OnStateChange(func(change jobsync.StateChange) {
			if change.State == jobsync.ConnectionDisconnected {
				fmt.Printf("-- real-time updates disconnected (%s), showing last known jobs --\n", change.Reason)
				return
			}
			fmt.Printf("-- connection %s --\n", change.State)
		})
		session.Store.Subscribe(func(jobs []jobsync.Job) {
			telemetryMu.Lock()
			t := telemetry
			telemetryMu.Unlock()
			printJobs(jobs, t)
		})

		if err := session.Start(ctx); err != nil {
			// Fetch failures are not fatal here: the push stream still
			// delivers updates and the user can re-run with --refresh.
			fmt.Printf("-- snapshot fetch failed: %v --\n", err)
		}
		if force {
			if err := session.Coordinator.Refresh(ctx, true); err != nil {
				fmt.Printf("-- snapshot fetch failed: %v --\n", err)
			}
		}

		<-ctx.Done()
		return nil
	},
}

func printJobs(jobs []jobsync.Job, telemetry *types.QueueTelemetry) {
	now := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "jobs (%d):\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(&b, "  %-12s %-10s", job.ID, job.Status)
		switch {
		case job.Status == jobsync.JobStatusProcessing:
			fmt.Fprintf(&b, " %3d%%", job.Progress)
		case job.Status == jobsync.JobStatusQueued:
			fmt.Fprintf(&b, " #%d in queue, ~%dm wait", job.QueuePosition, eta.EstimateWaitMinutes(telemetry))
		case job.Status == jobsync.JobStatusFailed && job.ErrorMessage != "":
			fmt.Fprintf(&b, " %s", job.ErrorMessage)
		}
		if job.MovieTitle != "" {
			fmt.Fprintf(&b, "  %s", job.MovieTitle)
		}
		fmt.Fprintf(&b, "  (%s)\n", eta.FormatRelativeTime(job.UpdatedAt, now))
	}
	fmt.Print(b.String())
}

// GetWatchCmd returns the watch command
func GetWatchCmd() *cobra.Command {
	return watchCmd
}
