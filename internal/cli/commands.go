// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldtrack/internal/models"
)

type jobEnvelope struct {
	Job *models.MaintenanceJob `json:"job"`
}

func printError(w io.Writer, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintln(w, errorStyle.Render("ERROR: "+apiErr.Error()))
		if id, ok := apiErr.Details["runningJobId"].(string); ok {
			fmt.Fprintf(w, "  running job: %s\n", id)
		}
		return
	}
	fmt.Fprintln(w, errorStyle.Render("ERROR: "+err.Error()))
}

// runMaintenance sends a compress or purge request and prints either the
// synchronous result or the accepted job.
func runMaintenance(cmd *cobra.Command, opts *globalOptions, method, path string, query url.Values, result interface{}, render func()) error {
	c, err := opts.client()
	if err != nil {
		return err
	}
	var raw json.RawMessage
	status, err := c.Do(cmd.Context(), method, path, query, &raw)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if status == http.StatusAccepted {
		var accepted jobEnvelope
		if err := json.Unmarshal(raw, &accepted); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}
		if opts.json {
			return writeJSON(out, accepted)
		}
		if accepted.Job == nil {
			return errors.New("server accepted the job without returning it")
		}
		fmt.Fprintln(out, successStyle.Render("Job started: "+accepted.Job.ID))
		fmt.Fprintln(out, subtleStyle.Render("Follow it with: fieldtrackctl jobs get "+accepted.Job.ID))
		return nil
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if opts.json {
		return writeJSON(out, result)
	}
	render()
	return nil
}

func newCompressCommand(opts *globalOptions) *cobra.Command {
	var (
		days  int
		ratio float64
		async bool
	)
	cmd := &cobra.Command{
		Use:     "compress",
		Short:   "Thin out fixes older than --days",
		GroupID: "maintenance",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if cmd.Flags().Changed("days") {
				q.Set("days", strconv.Itoa(days))
			}
			if cmd.Flags().Changed("ratio") {
				q.Set("compressionRatio", strconv.FormatFloat(ratio, 'f', -1, 64))
			}
			if async {
				q.Set("async", "true")
			}
			var result models.CompressResult
			return runMaintenance(cmd, opts, http.MethodPost, "/locations/compress", q, &result, func() {
				printCompressResult(cmd.OutOrStdout(), &result)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "compress fixes older than this many days (server default when unset)")
	cmd.Flags().Float64Var(&ratio, "ratio", 0, "fraction of fixes to keep, 0.1 to 1.0 (server default when unset)")
	cmd.Flags().BoolVar(&async, "async", false, "return as soon as the job starts")
	return cmd
}

func newPurgeCommand(opts *globalOptions) *cobra.Command {
	var (
		days  int
		async bool
	)
	cmd := &cobra.Command{
		Use:     "purge",
		Aliases: []string{"cleanup"},
		Short:   "Delete fixes older than --days",
		GroupID: "maintenance",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if cmd.Flags().Changed("days") {
				q.Set("days", strconv.Itoa(days))
			}
			if async {
				q.Set("async", "true")
			}
			var result models.PurgeResult
			return runMaintenance(cmd, opts, http.MethodDelete, "/locations/cleanup", q, &result, func() {
				printPurgeResult(cmd.OutOrStdout(), &result)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "delete fixes older than this many days (server default when unset)")
	cmd.Flags().BoolVar(&async, "async", false, "return as soon as the job starts")
	return cmd
}

func newJobsCommand(opts *globalOptions) *cobra.Command {
	jobs := &cobra.Command{
		Use:     "jobs",
		Short:   "Inspect and cancel maintenance jobs",
		GroupID: "maintenance",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			var resp struct {
				Jobs []models.MaintenanceJob `json:"jobs"`
			}
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			if _, err := c.Do(cmd.Context(), http.MethodGet, "/maintenance/jobs", q, &resp); err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			printJobTable(cmd.OutOrStdout(), resp.Jobs)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum jobs to show (1-500)")

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return jobRequest(cmd, opts, http.MethodGet, args[0])
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel the running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return jobRequest(cmd, opts, http.MethodDelete, args[0])
		},
	}

	jobs.AddCommand(list, get, cancel)
	return jobs
}

func jobRequest(cmd *cobra.Command, opts *globalOptions, method, id string) error {
	c, err := opts.client()
	if err != nil {
		return err
	}
	var resp jobEnvelope
	if _, err := c.Do(cmd.Context(), method, "/maintenance/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	if resp.Job == nil {
		return errors.New("server returned no job")
	}
	printJob(cmd.OutOrStdout(), resp.Job)
	return nil
}

func newStatsCommand(opts *globalOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:     "stats <user-id>",
		Short:   "Show location statistics for a user",
		GroupID: "query",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			q := url.Values{}
			if from != "" {
				q.Set("startDate", from)
			}
			if to != "" {
				q.Set("endDate", to)
			}
			var stats models.LocationStats
			if _, err := c.Do(cmd.Context(), http.MethodGet, "/locations/stats/"+url.PathEscape(args[0]), q, &stats); err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), &stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start, RFC 3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "window end, RFC 3339 or YYYY-MM-DD")
	return cmd
}
