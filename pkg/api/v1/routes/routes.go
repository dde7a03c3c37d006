// Package routes defines the job-service endpoints consumed by the client
package routes

import (
	"fmt"
	"net/url"
)

// API base configuration
const (
	// DefaultPort is the default port of the job service
	DefaultPort = "8000"
)

// DefaultBaseURL is the default base URL of the job service
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Endpoint paths
const (
	// JobsEndpoint returns the session's job list
	JobsEndpoint = "/jobs"
	// RealtimeEventsEndpoint is the push-event stream
	RealtimeEventsEndpoint = "/realtime/events"
)

// GetJobsURL returns the endpoint for listing the session's jobs
func GetJobsURL(query url.Values) string {
	if len(query) == 0 {
		return JobsEndpoint
	}
	return fmt.Sprintf("%s?%s", JobsEndpoint, query.Encode())
}

// GetJobURL returns the endpoint for a single job
func GetJobURL(id string) string {
	return fmt.Sprintf("%s/%s", JobsEndpoint, url.PathEscape(id))
}
