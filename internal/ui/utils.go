// Package ui holds the terminal output helpers shared by the CLI commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/forest-guardian/regen-insights/internal/ndvi"
	"github.com/forest-guardian/regen-insights/internal/pipeline"
)

var (
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
	success = color.New(color.FgGreen)
	info    = color.New(color.FgBlue)
)

func PrintBanner() {
	color.Cyan(figure.NewFigure("Regen", "isometric1", true).String())
	color.Cyan(figure.NewFigure("Insights", "isometric1", true).String())
	fmt.Println()
}

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	warning.Println("\nWarning:")
	warning.Println(message)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	failure.Printf("\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	success.Printf("\n%s\n", message)
}

func PrintInfo(message string) {
	info.Println(message)
}

// ParseDate accepts YYYY-MM-DD or "today".
func ParseDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "today" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse("2006-01-02", input)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s. Please use YYYY-MM-DD", input)
	}
	return date, nil
}

// CategoryColor picks the terminal colour of an insight category.
func CategoryColor(c ndvi.Category) *color.Color {
	switch c {
	case ndvi.CategoryHealthy:
		return success
	case ndvi.CategoryFair:
		return warning
	default:
		return failure
	}
}

// PrintRecord writes the summary of one run.
func PrintRecord(w io.Writer, r pipeline.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if r.ID != "" {
		fmt.Fprintf(tw, "Record\t%s\n", r.ID)
	}
	if r.ProjectID != nil {
		fmt.Fprintf(tw, "Project\t%s\n", *r.ProjectID)
	}
	fmt.Fprintf(tw, "Area\t%s\n", r.AreaName)
	fmt.Fprintf(tw, "NDVI min / mean / max\t%.4f / %.4f / %.4f\n", r.MinNDVI, r.MeanNDVI, r.MaxNDVI)
	fmt.Fprintf(tw, "Regeneration score\t%d\n", r.RegenScore)
	fmt.Fprintf(tw, "Computed at\t%s\n", r.ComputedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "Artifact\t%s\n", r.StoragePath)
	tw.Flush()

	CategoryColor(ndvi.Classify(r.MeanNDVI)).Fprintln(w, r.Insight)
}

// PrintRecords writes one line per record.
func PrintRecords(w io.Writer, records []pipeline.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAREA\tMEAN\tSCORE\tCOMPUTED AT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%d\t%s\n", r.ID, r.AreaName, r.MeanNDVI, r.RegenScore, r.ComputedAt.UTC().Format(time.RFC3339))
	}
	tw.Flush()
}

// StageProgress returns a bar over the pipeline stages and the hook that
// advances it.
func StageProgress(description string) (*progressbar.ProgressBar, func(pipeline.Stage)) {
	bar := progressbar.NewOptions(len(pipeline.Stages),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return bar, func(stage pipeline.Stage) {
		bar.Describe(fmt.Sprintf("%s: %s", description, stage))
		bar.Add(1)
	}
}
