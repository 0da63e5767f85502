package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sumika/internal/diff"
	"sumika/internal/runstore"
)

// Runs renders recent run history, newest first.
func Runs(records []runstore.RunRecord) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		status := "ok"
		if record.Error != "" {
			status = "failed"
		} else if record.FinishedAt.IsZero() {
			status = "running"
		}

		duration := "-"
		if !record.FinishedAt.IsZero() {
			duration = record.FinishedAt.Sub(record.StartedAt).Round(time.Second).String()
		}

		rows = append(rows, []string{
			record.RunID,
			record.StartedAt.Local().Format("2006-01-02 15:04"),
			status,
			yesNo(record.HasChanges),
			summarizeCounts(record.CategoryCounts),
			duration,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Status", "Changes", "Counts", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	) + "\n"
}

func summarizeCounts(counts map[string]diff.Counts) string {
	if len(counts) == 0 {
		return "-"
	}
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		c := counts[category]
		parts = append(parts, fmt.Sprintf("%s +%d ~%d -%d", category, c.New, c.Updated, c.Removed))
	}
	return strings.Join(parts, "; ")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
