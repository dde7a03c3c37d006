// Package commands implements the jobwatch CLI, a terminal consumer of the
// jobsync subsystem.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filmvoice/jobsync/config"
	"github.com/filmvoice/jobsync/pkg/api/v1/client"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagToken         = "token"
)

// environment variable names
const (
	envToken = "JOBSYNC_TOKEN"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// settings holds the resolved session settings
	settings config.Settings
	// serverAddress holds the target job service address. Flag parsing sets this.
	serverAddress string
	// authToken is the session token. Flag parsing sets this.
	authToken string
)

// initClient initializes the API client
func initClient() error {
	var err error
	apiClient, err = client.NewClient(&client.Options{
		BaseURL:   serverAddress,
		AuthToken: authToken,
	})
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", config.DefaultServerAddress,
		"Address of the job service (env: "+config.EnvServerAddress+")")
	RootCmd.PersistentFlags().StringVarP(&authToken, flagToken, "t", "",
		"Session token (env: "+envToken+")")

	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(GetWatchCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "jobwatch",
	Short: "jobwatch - follow your render jobs from the terminal",
	Long: `jobwatch subscribes to the job service's push stream and keeps a live,
de-duplicated view of the session's movie render jobs.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		settings = config.Load()

		// Precedence: flag > env var > default.
		if !cmd.Flags().Changed(flagServerAddress) {
			serverAddress = settings.ServerAddress
		}
		settings.ServerAddress = serverAddress

		if !cmd.Flags().Changed(flagToken) {
			authToken = os.Getenv(envToken)
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}
