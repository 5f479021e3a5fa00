package classifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
)

const urlDisplayLimit = 60

// Result is the bounded text block handed to the prompt assembler.
type Result struct {
	Intent    Intent
	Matched   int
	Shown     int
	Truncated bool
	Text      string
}

// ReduceForQuery turns the full dataset plus a free-text message into a
// bounded context block. Deterministic for a fixed (snapshot, message,
// now); there is no hidden state.
func ReduceForQuery(snapshot *models.Snapshot, message string, now time.Time) Result {
	intent := Classify(message)
	roles := detectColumns(snapshot.Columns)

	if intent == IntentStats {
		return Result{
			Intent: intent,
			Text:   renderStats(snapshot, roles, now),
		}
	}

	preds := buildPredicates(roles, intent, message, now)
	rows := filterRows(snapshot.Rows, preds)
	sortByActivity(rows, roles.activityTime)

	matched := len(rows)
	limit := RowCap(intent)
	truncated := matched > limit
	if truncated {
		rows = rows[:limit]
	}

	columns := selectColumns(roles, message)
	columns = dropEmptyColumns(columns, rows)

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset contains %d rows total. Showing %d of %d matching rows.\n",
		len(snapshot.Rows), len(rows), matched)
	if truncated {
		fmt.Fprintf(&b, "Note: output truncated to %d rows; ask a narrower question for the rest.\n", limit)
	}
	b.WriteString("\n")
	renderTable(&b, columns, rows)

	return Result{
		Intent:    intent,
		Matched:   matched,
		Shown:     len(rows),
		Truncated: truncated,
		Text:      b.String(),
	}
}

// dropEmptyColumns removes columns that carry no content in any shown
// row. A cell counts as non-empty when it has a value or a link, since
// link-only columns still render through displayValue.
func dropEmptyColumns(columns []string, rows []models.Row) []string {
	var kept []string
	for _, col := range columns {
		for _, row := range rows {
			cell := row[col]
			if strings.TrimSpace(cell.Value) != "" || strings.TrimSpace(cell.Link) != "" {
				kept = append(kept, col)
				break
			}
		}
	}
	return kept
}

func renderTable(b *strings.Builder, columns []string, rows []models.Row) {
	if len(rows) == 0 || len(columns) == 0 {
		b.WriteString("(no matching rows)\n")
		return
	}

	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, displayValue(row[col]))
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
}

// displayValue renders one cell, shortening long URLs so a single link
// column cannot blow the prompt budget.
func displayValue(cell models.Cell) string {
	value := cell.Value
	if value == "" && cell.Link != "" {
		value = cell.Link
	}
	if len(value) > urlDisplayLimit && (strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")) {
		return value[:urlDisplayLimit-3] + "..."
	}
	return value
}

// renderStats emits the aggregate-only block for stats intent. No row
// table, ever.
func renderStats(snapshot *models.Snapshot, roles columnRoles, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total rows: %d\n", len(snapshot.Rows))

	cutoff := now.AddDate(0, 0, -7)
	recent := 0
	for _, row := range snapshot.Rows {
		if when, ok := parseWhen(row.Value(roles.activityTime)); ok && when.After(cutoff) {
			recent++
		}
	}
	fmt.Fprintf(&b, "Active in the last 7 days: %d\n", recent)

	writeGroupCounts(&b, "By activity", snapshot.Rows, roles.activityType)
	writeGroupCounts(&b, "By category", snapshot.Rows, roles.category)
	writeGroupCounts(&b, "By workstream", snapshot.Rows, roles.workstream)
	writeLeaderboard(&b, snapshot.Rows, roles.author)

	if snapshot.Stats.CompletionRate > 0 {
		fmt.Fprintf(&b, "Completion rate: %.1f%%\n", snapshot.Stats.CompletionRate*100)
	}

	return b.String()
}

func writeGroupCounts(b *strings.Builder, label string, rows []models.Row, column string) {
	if column == "" {
		return
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if v := strings.TrimSpace(row.Value(column)); v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return
	}

	fmt.Fprintf(b, "%s:\n", label)
	for _, kv := range sortedCounts(counts, 0) {
		fmt.Fprintf(b, "  %s: %d\n", kv.key, kv.count)
	}
}

func writeLeaderboard(b *strings.Builder, rows []models.Row, column string) {
	if column == "" {
		return
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if v := strings.TrimSpace(row.Value(column)); v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return
	}

	b.WriteString("Top contributors:\n")
	for i, kv := range sortedCounts(counts, 5) {
		fmt.Fprintf(b, "  %d. %s (%d)\n", i+1, kv.key, kv.count)
	}
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders by count descending, name ascending on ties, and
// optionally truncates to the top n.
func sortedCounts(counts map[string]int, n int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
