package dataset

import (
	"strings"

	"github.com/dnugraha/chatportal/internal/models"
)

// Vocabulary that counts as "complete" when deriving the completion
// rate. The dataset owner's status values are free text, so this is a
// string match; confirm with the schema owner before extending it.
var completionWords = []string{"complete", "done", "finish", "selesai"}

// ComputeStats derives the snapshot aggregates: total rows, per-column
// fill rates, and a status tally with completion rate when the dataset
// has a status or progress column.
func ComputeStats(snapshot *models.Snapshot) models.SnapshotStats {
	stats := models.SnapshotStats{
		TotalRows:  len(snapshot.Rows),
		ColumnFill: make(map[string]models.ColumnFill, len(snapshot.Columns)),
	}

	var statusColumn string
	for _, col := range snapshot.Columns {
		title := strings.ToLower(col.Title)
		if statusColumn == "" && (strings.Contains(title, "status") || strings.Contains(title, "progress")) {
			statusColumn = col.Title
		}
	}

	for _, col := range snapshot.Columns {
		fill := models.ColumnFill{}
		for _, row := range snapshot.Rows {
			if strings.TrimSpace(row.Value(col.Title)) != "" {
				fill.Filled++
			} else {
				fill.Empty++
			}
		}
		if total := fill.Filled + fill.Empty; total > 0 {
			fill.FillRate = float64(fill.Filled) / float64(total)
		}
		stats.ColumnFill[col.Title] = fill
	}

	if statusColumn != "" {
		stats.StatusCounts = make(map[string]int)
		completed := 0
		for _, row := range snapshot.Rows {
			value := strings.TrimSpace(row.Value(statusColumn))
			if value == "" {
				continue
			}
			stats.StatusCounts[value]++
			if isComplete(value) {
				completed++
			}
		}
		if len(snapshot.Rows) > 0 {
			stats.CompletionRate = float64(completed) / float64(len(snapshot.Rows))
		}
	}

	return stats
}

func isComplete(status string) bool {
	status = strings.ToLower(status)
	for _, word := range completionWords {
		if strings.Contains(status, word) {
			return true
		}
	}
	return false
}
