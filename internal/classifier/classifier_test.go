package classifier

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
)

var testColumns = []models.Column{
	{Title: "Name", Type: "text", Primary: true},
	{Title: "Status", Type: "text"},
	{Title: "Category", Type: "text"},
	{Title: "Workstream", Type: "text"},
	{Title: "Modified By", Type: "text"},
	{Title: "Last Modified", Type: "datetime"},
	{Title: "Link", Type: "link"},
}

// buildSnapshot produces n rows; every third row was modified within the
// last week and carries a delayed status.
func buildSnapshot(n int, now time.Time) *models.Snapshot {
	rows := make([]models.Row, 0, n)
	for i := 0; i < n; i++ {
		var modified time.Time
		status := "Done"
		if i%3 == 0 {
			modified = now.AddDate(0, 0, -(i%6 + 1))
			status = "Delayed"
		} else {
			modified = now.AddDate(0, 0, -(30 + i))
		}
		rows = append(rows, models.Row{
			"Name":          {Value: fmt.Sprintf("Project %03d", i)},
			"Status":        {Value: status},
			"Category":      {Value: []string{"Design", "Development", "Testing"}[i%3]},
			"Workstream":    {Value: []string{"Frontend", "Backend"}[i%2]},
			"Modified By":   {Value: []string{"Andi", "Budi", "Citra"}[i%3]},
			"Last Modified": {Value: modified.Format("2006-01-02 15:04:05")},
			"Link":          {Value: "https://tables.example.com/rows/" + strings.Repeat("x", 80)},
		})
	}
	return &models.Snapshot{
		SourceID:  "test",
		FetchedAt: now,
		Columns:   testColumns,
		Rows:      rows,
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"tampilkan proyek minggu ini", IntentRecent},
		{"what changed this week", IntentRecent},
		{"cari dokumen laporan keuangan", IntentSearch},
		{"find the onboarding deck this week", IntentSearch}, // search term overrides recent
		{"siapa yang mengubah file ini", IntentUser},
		{"documents modified by Budi", IntentUser},
		{"tampilkan kategori desain", IntentCategory},
		{"berapa total project", IntentStats},
		{"ringkasan aktivitas", IntentStats},
		{"apa kabar", IntentDefault},
	}

	for _, tt := range tests {
		if got := Classify(tt.message); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestRowCapNeverExceeded(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(500, now)

	messages := map[string]Intent{
		"tampilkan semua proyek":   IntentDefault,
		"proyek minggu ini":        IntentRecent,
		"cari proposal":            IntentSearch,
		"documents edited by Andi": IntentUser,
		"kategori development":     IntentCategory,
	}

	for message, intent := range messages {
		result := ReduceForQuery(snapshot, message, now)
		if result.Intent != intent {
			t.Errorf("%q: intent = %v, want %v", message, result.Intent, intent)
		}
		if result.Shown > RowCap(intent) {
			t.Errorf("%q: shown %d rows, cap is %d", message, result.Shown, RowCap(intent))
		}
		// Data lines in the text must not exceed the cap either.
		if lines := countDataLines(result.Text); lines > RowCap(intent) {
			t.Errorf("%q: rendered %d data lines, cap is %d", message, lines, RowCap(intent))
		}
	}
}

func countDataLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Project ") {
			count++
		}
	}
	return count
}

func TestStatsIntentRendersNoRows(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(120, now)

	result := ReduceForQuery(snapshot, "berapa total project", now)
	if result.Intent != IntentStats {
		t.Fatalf("intent = %v, want stats", result.Intent)
	}
	if !strings.Contains(result.Text, "Total rows: 120") {
		t.Errorf("stats block missing total count:\n%s", result.Text)
	}
	if strings.Contains(result.Text, "Project 0") {
		t.Errorf("stats block contains row-level detail:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "Top contributors:") {
		t.Errorf("stats block missing author leaderboard:\n%s", result.Text)
	}
}

func TestRecentQueryScenario(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(120, now)

	result := ReduceForQuery(snapshot, "tampilkan proyek yang delay minggu ini", now)
	if result.Intent != IntentRecent {
		t.Fatalf("intent = %v, want recent", result.Intent)
	}
	if result.Shown > 30 {
		t.Errorf("shown %d rows, recent cap is 30", result.Shown)
	}

	// Every rendered timestamp must fall inside the last 7 days, and the
	// order must be newest first.
	cutoff := now.AddDate(0, 0, -7)
	var previous time.Time
	first := true
	for _, line := range strings.Split(result.Text, "\n") {
		if !strings.Contains(line, "Project ") {
			continue
		}
		fields := strings.Split(line, " | ")
		when, ok := parseWhen(fields[len(fields)-1])
		if !ok {
			// Timestamp column may not be last if links were dropped;
			// scan all fields for a parseable time.
			for _, f := range fields {
				if w, o := parseWhen(f); o {
					when, ok = w, true
					break
				}
			}
		}
		if !ok {
			t.Fatalf("row line has no parseable timestamp: %q", line)
		}
		if when.Before(cutoff) {
			t.Errorf("row outside the 7-day window: %q", line)
		}
		if !first && when.After(previous) {
			t.Errorf("rows not sorted newest-first around %q", line)
		}
		previous, first = when, false
	}
}

func TestLinkColumnDroppedUnlessRequested(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(10, now)

	plain := ReduceForQuery(snapshot, "tampilkan semua proyek", now)
	if strings.Contains(plain.Text, "https://tables.example.com") {
		t.Errorf("link column rendered without being asked for:\n%s", plain.Text)
	}

	withLinks := ReduceForQuery(snapshot, "tampilkan semua proyek beserta link akses", now)
	if !strings.Contains(withLinks.Text, "https://tables.example.com") {
		t.Errorf("link column missing although requested:\n%s", withLinks.Text)
	}
	// Long URLs get shortened to protect the prompt budget.
	for _, line := range strings.Split(withLinks.Text, "\n") {
		for _, cell := range strings.Split(line, " | ") {
			if strings.HasPrefix(cell, "https://") && len(cell) > urlDisplayLimit {
				t.Errorf("URL not shortened: %q", cell)
			}
		}
	}
}

func TestLinkOnlyColumnRenderedWhenRequested(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(10, now)

	// Hyperlink cells often carry only the Link field, no display value.
	for _, row := range snapshot.Rows {
		row["Link"] = models.Cell{Link: "https://tables.example.com/rows/abc"}
	}

	result := ReduceForQuery(snapshot, "tampilkan semua proyek beserta link akses", now)
	if !strings.Contains(result.Text, "https://tables.example.com/rows/abc") {
		t.Errorf("link-only column dropped although requested:\n%s", result.Text)
	}
}

func TestReduceForQueryDeterministic(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	snapshot := buildSnapshot(60, now)

	message := "ringkasan aktivitas proyek"
	first := ReduceForQuery(snapshot, message, now)
	for i := 0; i < 5; i++ {
		if again := ReduceForQuery(snapshot, message, now); again.Text != first.Text {
			t.Fatalf("output differs between identical calls")
		}
	}
}

func TestExtractAuthor(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"files modified by Budi Santoso", "Budi Santoso"},
		{"dokumen yang diubah oleh Citra", "Citra"},
		{"report from Andi", "Andi"},
		{"no author here", ""},
	}
	for _, tt := range tests {
		if got := extractAuthor(tt.message); got != tt.want {
			t.Errorf("extractAuthor(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestIsDataQueryVisualCarveOut(t *testing.T) {
	if IsDataQuery("tolong kirim dashboard screenshot") {
		t.Errorf("pure visual request counted as data query")
	}
	if !IsDataQuery("berapa jumlah proyek yang selesai") {
		t.Errorf("obvious data query not recognized")
	}
}
