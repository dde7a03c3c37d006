package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/filmvoice/jobsync/cmd/jobwatch/commands"
	"github.com/filmvoice/jobsync/internal/logger"
)

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()
	logger.InitializeAndConfigure()

	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
