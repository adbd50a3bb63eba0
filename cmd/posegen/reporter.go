package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/posegen/internal/models"
	"github.com/spboyer/posegen/internal/orchestration"
)

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

func simpleProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			fmt.Fprintf(w, "Generating %d image(s) into %s\n", event.TotalJobs, event.OutputDirectory)
		case orchestration.EventJobComplete:
			status := "✓"
			if !event.Success {
				status = "✗"
			}
			fmt.Fprintf(w, "%s [%d/%d] %s\n", status, event.JobIndex, event.TotalJobs, event.PoseName)
		}
	}
}

func verboseProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			fmt.Fprintf(w, "Generating %d image(s) into %s\n\n", event.TotalJobs, event.OutputDirectory)
		case orchestration.EventJobStart:
			fmt.Fprintf(w, "[%d/%d] Submitting %s\n", event.JobIndex, event.TotalJobs, event.PoseName)
		case orchestration.EventJobAccepted:
			fmt.Fprintf(w, "[%d/%d] %s accepted as %s\n", event.JobIndex, event.TotalJobs, event.PoseName, event.ProviderID)
		case orchestration.EventJobComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			if event.Success {
				fmt.Fprintf(w, "[%d/%d] ✓ %s (%s)\n", event.JobIndex, event.TotalJobs, event.Filename, formatDuration(duration))
			} else {
				fmt.Fprintf(w, "[%d/%d] ✗ %s: %s\n", event.JobIndex, event.TotalJobs, event.PoseName, truncate(event.Error, 200))
			}
		case orchestration.EventRunComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "\nRun completed in %s\n", formatDuration(duration))
		}
	}
}

func printSummary(w io.Writer, summary *models.RunSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w, " GENERATION RESULTS")
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total:       %d\n", summary.Total)
	fmt.Fprintf(w, "Successful:  %d\n", summary.Successful)
	fmt.Fprintf(w, "Failed:      %d\n", summary.Failed)

	duration := time.Duration(summary.DurationMs) * time.Millisecond
	fmt.Fprintf(w, "Duration:    %s\n", formatDuration(duration))
	fmt.Fprintf(w, "Output:      %s\n", summary.OutputDirectory)

	if failures := summary.Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		printFailures(w, failures)
	}
}

const maxPoseColumn = 32

// printFailures lists failed poses with their errors in aligned columns.
func printFailures(w io.Writer, failures []models.GenerationResult) {
	width := len("Pose")
	for _, f := range failures {
		if n := runewidth.StringWidth(f.Pose); n > width {
			width = n
		}
	}
	width = min(width, maxPoseColumn)

	fmt.Fprintf(w, "Failed poses:\n")
	fmt.Fprintf(w, "  %s  %s  %s\n", padRight("#", 4), padRight("Pose", width), "Error")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 4+2+width+2+5))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			padRight(fmt.Sprintf("%03d", f.Index), 4),
			padRight(truncateName(f.Pose, width), width),
			truncate(f.Error, 120))
	}
}

// truncate shortens s to maxLen characters, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// truncateName shortens name to fit width display columns.
func truncateName(name string, width int) string {
	if runewidth.StringWidth(name) <= width {
		return name
	}
	return runewidth.Truncate(name, width, "…")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
