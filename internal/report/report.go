package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sumika/internal/diff"
	"sumika/internal/pipeline"
)

// Run renders a completed run: per-category change counts with stale
// enrichment marks, followed by a stage outcome table.
func Run(report *pipeline.RunReport) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Run %s\n", report.RunID)

	categories := make([]string, 0, len(report.Counts))
	for category := range report.Counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	countRows := make([][]string, 0, len(categories))
	for _, category := range categories {
		counts := report.Counts[category]
		stale := "-"
		if stages := report.StaleStages(category); len(stages) > 0 {
			stale = strings.Join(stages, ", ")
		}
		countRows = append(countRows, []string{
			category,
			fmt.Sprintf("%d", counts.New),
			fmt.Sprintf("%d", counts.Updated),
			fmt.Sprintf("%d", counts.Removed),
			fmt.Sprintf("%d", counts.Unchanged),
			stale,
		})
	}
	builder.WriteString(renderTable(
		[]string{"Category", "New", "Updated", "Removed", "Unchanged", "Stale Enrichment"},
		countRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	builder.WriteString("\n")

	outcomeRows := make([][]string, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		status := "ok"
		detail := ""
		if !outcome.OK {
			status = "failed"
			if outcome.Err != nil {
				detail = outcome.Err.Error()
			}
		}
		outcomeRows = append(outcomeRows, []string{
			outcome.Category,
			outcome.Stage,
			status,
			outcome.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	builder.WriteString(renderTable(
		[]string{"Category", "Stage", "Status", "Duration", "Detail"},
		outcomeRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	builder.WriteString("\n")
	return builder.String()
}

// Diff renders a single category's diff counts.
func Diff(category string, counts diff.Counts) string {
	rows := [][]string{{
		category,
		fmt.Sprintf("%d", counts.New),
		fmt.Sprintf("%d", counts.Updated),
		fmt.Sprintf("%d", counts.Removed),
		fmt.Sprintf("%d", counts.Unchanged),
	}}
	return renderTable(
		[]string{"Category", "New", "Updated", "Removed", "Unchanged"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	) + "\n"
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
