package classifier

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
)

// Vocabularies the row predicates key on. Category and workstream tokens
// double as intent triggers.
var (
	categoryTokens = []string{
		"design", "desain", "development", "pengembangan", "testing", "pengujian",
		"documentation", "dokumentasi", "research", "riset",
	}
	workstreamTokens = []string{
		"frontend", "backend", "mobile", "infra", "data platform", "qa",
	}
	// Ordered so predicate composition stays deterministic.
	activityTypes = []struct {
		name  string
		words []string
	}{
		{"deleted", []string{"deleted", "dihapus", "hapus", "remove"}},
		{"edited", []string{"edited", "diubah", "diedit", "modified", "update"}},
		{"added", []string{"added", "ditambah", "ditambahkan", "created", "dibuat"}},
		{"delayed", []string{"delay", "terlambat", "tertunda", "overdue"}},
	}
	linkRequestKeywords = []string{"link", "url", "tautan", "akses", "access"}

	searchStopwords = map[string]struct{}{
		"find": {}, "cari": {}, "carikan": {}, "search": {}, "tampilkan": {}, "show": {},
		"tolong": {}, "please": {}, "yang": {}, "untuk": {}, "dengan": {}, "dari": {},
		"the": {}, "for": {}, "with": {}, "file": {}, "files": {}, "dokumen": {},
		"document": {}, "nama": {}, "name": {}, "bernama": {}, "berjudul": {},
		"data": {}, "project": {}, "proyek": {}, "tentang": {}, "about": {},
	}

	authorPattern = regexp.MustCompile(`(?i)\b(?:by|oleh|from|dari)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)
)

// Month names in calendar order so a message naming two months always
// resolves to the earlier one.
var monthNames = []struct {
	name  string
	month time.Month
}{
	{"january", time.January}, {"januari", time.January},
	{"february", time.February}, {"februari", time.February},
	{"march", time.March}, {"maret", time.March},
	{"april", time.April},
	{"may ", time.May}, {"mei", time.May},
	{"june", time.June}, {"juni", time.June},
	{"july", time.July}, {"juli", time.July},
	{"august", time.August}, {"agustus", time.August},
	{"september", time.September},
	{"october", time.October}, {"oktober", time.October},
	{"november", time.November},
	{"december", time.December}, {"desember", time.December},
}

// columnRoles resolves which snapshot columns play which part in
// filtering. Datasets name their columns freely, so resolution is by
// case-insensitive title fragments.
type columnRoles struct {
	titles       []string
	activityTime string
	activityType string
	category     string
	workstream   string
	author       string
	names        []string
	links        []string
}

func detectColumns(cols []models.Column) columnRoles {
	var roles columnRoles
	for _, c := range cols {
		roles.titles = append(roles.titles, c.Title)
		title := strings.ToLower(c.Title)

		switch {
		case c.Type == "link" || c.Type == "url" ||
			strings.Contains(title, "link") || strings.Contains(title, "url") ||
			strings.Contains(title, "attachment") || strings.Contains(title, "lampiran"):
			roles.links = append(roles.links, c.Title)
		}

		if roles.activityTime == "" && (strings.Contains(title, "modified") ||
			strings.Contains(title, "updated") || strings.Contains(title, "activity date") ||
			strings.Contains(title, "tanggal") || c.Type == "date" || c.Type == "datetime") {
			roles.activityTime = c.Title
		}
		if roles.activityType == "" && (strings.Contains(title, "activity") ||
			strings.Contains(title, "action") || strings.Contains(title, "status")) &&
			!strings.Contains(title, "date") {
			roles.activityType = c.Title
		}
		if roles.category == "" && (strings.Contains(title, "categor") || strings.Contains(title, "kategori")) {
			roles.category = c.Title
		}
		if roles.workstream == "" && (strings.Contains(title, "workstream") ||
			strings.Contains(title, "stream") || strings.Contains(title, "team") ||
			strings.Contains(title, "tim ")) {
			roles.workstream = c.Title
		}
		if roles.author == "" && (strings.Contains(title, "by") || strings.Contains(title, "oleh") ||
			strings.Contains(title, "author") || strings.Contains(title, "owner") ||
			strings.Contains(title, "pic")) {
			roles.author = c.Title
		}
		if c.Primary || strings.Contains(title, "name") || strings.Contains(title, "nama") ||
			strings.Contains(title, "title") || strings.Contains(title, "judul") ||
			strings.Contains(title, "file") {
			roles.names = append(roles.names, c.Title)
		}
	}
	return roles
}

// selectColumns picks the safe, low-token column subset. Hyperlink
// columns are dropped unless the message explicitly asks for links.
func selectColumns(roles columnRoles, message string) []string {
	msg := strings.ToLower(message)
	wantLinks := containsAny(msg, linkRequestKeywords)

	linkSet := make(map[string]struct{}, len(roles.links))
	for _, l := range roles.links {
		linkSet[l] = struct{}{}
	}

	var selected []string
	for _, title := range roles.titles {
		if _, isLink := linkSet[title]; isLink && !wantLinks {
			continue
		}
		selected = append(selected, title)
	}
	return selected
}

// rowPredicate returns true when a row survives the filter.
type rowPredicate func(row models.Row) bool

// buildPredicates composes every predicate whose trigger phrase occurs
// in the message. Order follows the documented rule table: date range,
// activity type, category, workstream, author, then search terms.
func buildPredicates(roles columnRoles, intent Intent, message string, now time.Time) []rowPredicate {
	msg := strings.ToLower(message)
	var preds []rowPredicate

	if p := dateRangePredicate(roles, msg, now); p != nil {
		preds = append(preds, p)
	}
	for _, at := range activityTypes {
		if containsAny(msg, at.words) {
			preds = append(preds, valueMatchPredicate(roles.activityType, at.words))
			break
		}
	}
	for _, token := range categoryTokens {
		if strings.Contains(msg, token) {
			preds = append(preds, valueMatchPredicate(roles.category, []string{token}))
			break
		}
	}
	for _, token := range workstreamTokens {
		if strings.Contains(msg, token) {
			preds = append(preds, valueMatchPredicate(roles.workstream, []string{token}))
			break
		}
	}
	if name := extractAuthor(message); name != "" {
		preds = append(preds, valueMatchPredicate(roles.author, []string{strings.ToLower(name)}))
	}
	if intent == IntentSearch {
		if terms := searchTerms(msg); len(terms) > 0 {
			preds = append(preds, nameMatchPredicate(roles.names, terms))
		}
	}

	return preds
}

func dateRangePredicate(roles columnRoles, msg string, now time.Time) rowPredicate {
	within := func(test func(time.Time) bool) rowPredicate {
		return func(row models.Row) bool {
			when, ok := parseWhen(row.Value(roles.activityTime))
			if !ok {
				return false
			}
			return test(when)
		}
	}

	switch {
	case strings.Contains(msg, "this week") || strings.Contains(msg, "minggu ini"):
		cutoff := now.AddDate(0, 0, -7)
		return within(func(t time.Time) bool { return t.After(cutoff) && !t.After(now.AddDate(0, 0, 1)) })
	case strings.Contains(msg, "today") || strings.Contains(msg, "hari ini"):
		return within(func(t time.Time) bool {
			return t.Year() == now.Year() && t.YearDay() == now.YearDay()
		})
	case strings.Contains(msg, "this month") || strings.Contains(msg, "bulan ini"):
		return within(func(t time.Time) bool {
			return t.Year() == now.Year() && t.Month() == now.Month()
		})
	}

	for _, mn := range monthNames {
		if strings.Contains(msg, mn.name) {
			m := mn.month
			return within(func(t time.Time) bool {
				return t.Month() == m && t.Year() == now.Year()
			})
		}
	}
	return nil
}

// valueMatchPredicate matches a column value against any of the given
// lowercase fragments. A row with no such column never matches.
func valueMatchPredicate(column string, fragments []string) rowPredicate {
	return func(row models.Row) bool {
		if column == "" {
			return false
		}
		value := strings.ToLower(row.Value(column))
		for _, f := range fragments {
			if strings.Contains(value, f) {
				return true
			}
		}
		return false
	}
}

func nameMatchPredicate(nameColumns []string, terms []string) rowPredicate {
	return func(row models.Row) bool {
		for _, col := range nameColumns {
			value := strings.ToLower(row.Value(col))
			for _, term := range terms {
				if strings.Contains(value, term) {
					return true
				}
			}
		}
		return false
	}
}

// extractAuthor pulls "<name>" out of a "by/oleh/from <name>" phrase.
func extractAuthor(message string) string {
	m := authorPattern.FindStringSubmatch(message)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// searchTerms strips stopwords and returns the remaining meaningful
// words of the query.
func searchTerms(msg string) []string {
	var terms []string
	for _, word := range strings.Fields(msg) {
		word = strings.Trim(word, `.,!?"'()`)
		if len(word) < 3 {
			continue
		}
		if _, stop := searchStopwords[word]; stop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// filterRows applies the composed predicates. With no predicates the
// answer is the whole dataset, sorted but unfiltered.
func filterRows(rows []models.Row, preds []rowPredicate) []models.Row {
	if len(preds) == 0 {
		out := make([]models.Row, len(rows))
		copy(out, rows)
		return out
	}

	var out []models.Row
	for _, row := range rows {
		keep := true
		for _, pred := range preds {
			if !pred(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// sortByActivity orders rows newest-first. Rows without a parseable
// timestamp sort last, keeping their relative order.
func sortByActivity(rows []models.Row, timeColumn string) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, oki := parseWhen(rows[i].Value(timeColumn))
		tj, okj := parseWhen(rows[j].Value(timeColumn))
		if oki && okj {
			return ti.After(tj)
		}
		return oki && !okj
	})
}

var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"2 January 2006",
}

func parseWhen(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range whenLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
