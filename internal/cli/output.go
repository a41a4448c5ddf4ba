// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldtrack/internal/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	statusStyles = map[models.JobStatus]lipgloss.Style{
		models.JobRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.JobSucceeded: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.JobFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.JobCanceled:  lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	idCol     = lipgloss.NewStyle().Width(38)
	kindCol   = lipgloss.NewStyle().Width(10)
	statusCol = lipgloss.NewStyle().Width(11)
	countCol  = lipgloss.NewStyle().Width(10).Align(lipgloss.Right).MarginRight(2)
)

const timeLayout = "2006-01-02 15:04:05Z07:00"

func renderStatus(s models.JobStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		style = subtleStyle
	}
	return statusCol.Render(style.Render(string(s)))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJob(w io.Writer, job *models.MaintenanceJob) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Job"), job.ID)
	fmt.Fprintf(w, "  kind:       %s\n", job.Kind)
	fmt.Fprintf(w, "  status:     %s\n", renderStatus(job.Status))
	fmt.Fprintf(w, "  days:       %d\n", job.Days)
	if job.Kind == models.JobCompress {
		fmt.Fprintf(w, "  ratio:      %.2f\n", job.CompressionRatio)
	}
	fmt.Fprintf(w, "  cutoff:     %s\n", job.CutoffDate.UTC().Format(timeLayout))
	fmt.Fprintf(w, "  affected:   %d\n", job.Affected)
	fmt.Fprintf(w, "  requested:  %s\n", job.RequestedBy)
	fmt.Fprintf(w, "  started:    %s\n", job.StartedAt.UTC().Format(timeLayout))
	if job.FinishedAt != nil {
		fmt.Fprintf(w, "  finished:   %s\n", job.FinishedAt.UTC().Format(timeLayout))
	}
	if job.Archived != "" {
		fmt.Fprintf(w, "  archived:   %s\n", job.Archived)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "  error:      %s\n", errorStyle.Render(job.Error))
	}
}

func printJobTable(w io.Writer, jobs []models.MaintenanceJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("No maintenance jobs recorded"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		idCol.Render("ID"), kindCol.Render("KIND"), statusCol.Render("STATUS"),
		countCol.Render("AFFECTED"), "STARTED")))
	for i := range jobs {
		job := &jobs[i]
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			idCol.Render(job.ID),
			kindCol.Render(string(job.Kind)),
			renderStatus(job.Status),
			countCol.Render(fmt.Sprintf("%d", job.Affected)),
			job.StartedAt.UTC().Format(timeLayout),
		))
	}
}

func printCompressResult(w io.Writer, r *models.CompressResult) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Compressed %d fixes", r.Compressed)))
	fmt.Fprintf(w, "  cutoff: %s\n  ratio:  %.2f\n", r.CutoffDate.UTC().Format(timeLayout), r.CompressionRatio)
}

func printPurgeResult(w io.Writer, r *models.PurgeResult) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Deleted %d fixes", r.DeletedCount)))
	fmt.Fprintf(w, "  cutoff: %s\n", r.CutoffDate.UTC().Format(timeLayout))
}

func printStats(w io.Writer, s *models.LocationStats) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("User"), s.UserID)
	fmt.Fprintf(w, "  total fixes:   %d\n", s.TotalLocations)
	fmt.Fprintf(w, "  avg accuracy:  %.1f m\n", s.AvgAccuracy)
	fmt.Fprintf(w, "  first fix:     %s\n", formatOptionalTime(s.FirstLocation))
	fmt.Fprintf(w, "  last fix:      %s\n", formatOptionalTime(s.LastLocation))
	if len(s.SourceDistribution) == 0 {
		return
	}
	sources := make([]string, 0, len(s.SourceDistribution))
	for src := range s.SourceDistribution {
		sources = append(sources, string(src))
	}
	sort.Strings(sources)
	fmt.Fprintln(w, "  sources:")
	for _, src := range sources {
		fmt.Fprintf(w, "    %-8s %d\n", src, s.SourceDistribution[models.FixSource(src)])
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return subtleStyle.Render("none")
	}
	return t.UTC().Format(timeLayout)
}
