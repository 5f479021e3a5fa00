package models

import "time"

// Column describes one column of the external dataset.
type Column struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
}

// Cell is a single dataset value with its optional markers.
type Cell struct {
	Value   string `json:"value"`
	Link    string `json:"link,omitempty"`
	Formula string `json:"formula,omitempty"`
	IsImage bool   `json:"is_image,omitempty"`
}

// Row maps column titles to cells.
type Row map[string]Cell

// Value returns the cell text for a column title, or "" when absent.
func (r Row) Value(title string) string {
	return r[title].Value
}

// ColumnFill tracks how populated one column is across the dataset.
type ColumnFill struct {
	Filled   int     `json:"filled"`
	Empty    int     `json:"empty"`
	FillRate float64 `json:"fill_rate"`
}

// SnapshotStats are the aggregates derived at fetch time.
type SnapshotStats struct {
	TotalRows      int                   `json:"total_rows"`
	StatusCounts   map[string]int        `json:"status_counts,omitempty"`
	CompletionRate float64               `json:"completion_rate"`
	ColumnFill     map[string]ColumnFill `json:"column_fill"`
}

// Snapshot is a point-in-time capture of the external dataset. A fetch
// always replaces the whole snapshot; there is no partial merge.
type Snapshot struct {
	SourceID  string        `json:"source_id"`
	FetchedAt time.Time     `json:"fetched_at"`
	Columns   []Column      `json:"columns"`
	Rows      []Row         `json:"rows"`
	Stats     SnapshotStats `json:"stats"`
}

// Age returns how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Fresh reports whether the snapshot is still inside its TTL.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return s.Age(now) < ttl
}

// ColumnTitles lists the snapshot's column titles in order.
func (s *Snapshot) ColumnTitles() []string {
	titles := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		titles = append(titles, c.Title)
	}
	return titles
}
