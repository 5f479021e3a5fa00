package classifier

import "strings"

// Intent is a coarse classification of what a user's free-text query is
// after. It drives how aggressively the dataset gets reduced before it
// is packed into a prompt.
type Intent string

const (
	IntentRecent   Intent = "recent"
	IntentSearch   Intent = "search"
	IntentUser     Intent = "user"
	IntentCategory Intent = "category"
	IntentStats    Intent = "stats"
	IntentDefault  Intent = "default"
)

// Per-intent ceilings on how many rows may ever be rendered. Stats
// queries get an aggregate block instead of a row table.
var rowCaps = map[Intent]int{
	IntentRecent:   30,
	IntentSearch:   20,
	IntentUser:     25,
	IntentCategory: 40,
	IntentStats:    0,
	IntentDefault:  50,
}

// RowCap returns the maximum number of rows that may be rendered for an
// intent.
func RowCap(intent Intent) int {
	if limit, ok := rowCaps[intent]; ok {
		return limit
	}
	return rowCaps[IntentDefault]
}

// Keyword vocabularies are mixed English/Indonesian, matching the
// phrasing the portal's users actually type. Queries in other languages
// fall through to the default intent; that is a documented boundary of
// the heuristic, not a bug.
var (
	recentKeywords = []string{
		"this week", "minggu ini", "latest", "terbaru", "terakhir", "recent", "baru-baru",
	}
	searchKeywords = []string{
		"find", "cari", "carikan", "search", "bernama", "berjudul", "dokumen tentang", "file tentang",
	}
	userKeywords = []string{
		"who", "siapa", "modified by", "diubah oleh", "dimodifikasi", "oleh ", "by ",
	}
	categoryKeywords = []string{
		"category", "kategori", "workstream", "jenis",
	}
	statsKeywords = []string{
		"total", "count", "jumlah", "berapa", "summary", "ringkasan", "statistik", "statistics", "rekap",
	}
	dataKeywords = []string{
		"project", "proyek", "data", "status", "progress", "total", "berapa", "jumlah",
		"list", "daftar", "aktivitas", "activity", "siapa", "kategori", "category",
		"minggu ini", "terbaru", "workstream", "dokumen",
	}
)

// Classify infers the query intent from a free-text message. Rules run
// in priority order and the first match wins.
func Classify(message string) Intent {
	msg := strings.ToLower(message)

	hasSearch := containsAny(msg, searchKeywords)

	switch {
	case containsAny(msg, recentKeywords) && !hasSearch:
		return IntentRecent
	case hasSearch:
		return IntentSearch
	case containsAny(msg, userKeywords):
		return IntentUser
	case containsAny(msg, categoryKeywords) || containsAny(msg, categoryTokens) || containsAny(msg, workstreamTokens):
		return IntentCategory
	case containsAny(msg, statsKeywords):
		return IntentStats
	default:
		return IntentDefault
	}
}

// IsDataQuery reports whether a message should pull dataset context into
// the prompt at all. Pure visual requests (dashboard, gambar,
// screenshot) are deliberately absent from the data vocabulary: asking
// for a picture is not asking for rows.
func IsDataQuery(message string) bool {
	return containsAny(strings.ToLower(message), dataKeywords)
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
