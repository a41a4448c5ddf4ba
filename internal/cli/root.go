// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 5 * time.Minute
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
	json    bool
}

func (o *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.server, "server", envOr("FIELDTRACK_SERVER", defaultServer), "fieldtrack server base URL")
	fs.StringVar(&o.token, "token", os.Getenv("FIELDTRACK_TOKEN"), "bearer token for an admin principal")
	fs.DurationVar(&o.timeout, "timeout", defaultTimeout, "HTTP timeout; synchronous maintenance runs can take minutes")
	fs.BoolVar(&o.json, "json", false, "print raw JSON instead of formatted text")
}

func (o *globalOptions) client() (*Client, error) {
	return NewClient(o.server, o.token, o.timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewRootCommand builds the fieldtrackctl command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "fieldtrackctl",
		Short:         "Operate a fieldtrack location server",
		Long:          "fieldtrackctl runs maintenance jobs and reads statistics through a fieldtrack server's HTTP API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	root.AddGroup(
		&cobra.Group{ID: "maintenance", Title: "Maintenance Commands:"},
		&cobra.Group{ID: "query", Title: "Query Commands:"},
	)
	root.AddCommand(
		newCompressCommand(opts),
		newPurgeCommand(opts),
		newJobsCommand(opts),
		newStatsCommand(opts),
	)
	return root
}

// Execute runs the command tree against os.Args and returns the exit code.
func Execute(ctx context.Context, version string, stderr io.Writer) int {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}
