package storage

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/forest-guardian/regen-insights/internal/pipeline"
	"github.com/forest-guardian/regen-insights/internal/utils"
)

// ExportCSV writes records oldest first with a header row.
func ExportCSV(w io.Writer, records []pipeline.Record) error {
	sorted := utils.SortByTime(slices.Clone(records), func(r pipeline.Record) time.Time { return r.ComputedAt }, true)
	if err := gocsv.Marshal(&sorted, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
