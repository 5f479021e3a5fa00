package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Asset is one pre-rendered visual file resolved from disk.
type Asset struct {
	Name      string
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// FolderEntry maps keyword fragments to one named folder of dashboard
// assets. The table is configuration data, loaded at startup, not code.
type FolderEntry struct {
	Keywords []string `mapstructure:"keywords"`
	Folder   string   `mapstructure:"folder"`
}

// Resolver maps free-text asset queries to concrete files on disk.
type Resolver struct {
	root    string
	folders []FolderEntry
	logger  *zap.Logger
}

func NewResolver(root string, folders []FolderEntry, logger *zap.Logger) *Resolver {
	return &Resolver{root: root, folders: folders, logger: logger}
}

// Detection vocabularies. Dashboard words always qualify; generic file
// words need an action verb; analysis phrasing vetoes everything, so
// "what is this picture about" never triggers a dashboard lookup.
var (
	analysisKeywords = []string{
		"what is this", "apa ini", "apa isi", "explain", "jelaskan", "maksud",
		"meaning of", "artinya", "describe", "analisa", "analyze",
	}
	dashboardKeywords = []string{
		"dashboard", "visualisasi", "visualization", "grafik", "chart", "diagram",
	}
	genericFileKeywords = []string{
		"image", "gambar", "foto", "photo", "screenshot", "file", "picture",
	}
	actionVerbs = []string{
		"show", "tampilkan", "send", "kirim", "give", "berikan", "get", "ambil", "lihat", "buka",
	}
	allKeywords = []string{"all", "semua", "seluruh"}
)

// IsAssetRequest decides whether a message asks for a pre-rendered
// visual asset rather than a data answer or an analysis of something
// already attached.
func IsAssetRequest(message string) bool {
	msg := strings.ToLower(message)

	for _, kw := range analysisKeywords {
		if strings.Contains(msg, kw) {
			return false
		}
	}
	for _, kw := range dashboardKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}

	hasFileWord := false
	for _, kw := range genericFileKeywords {
		if strings.Contains(msg, kw) {
			hasFileWord = true
			break
		}
	}
	if !hasFileWord {
		return false
	}
	for _, verb := range actionVerbs {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

// Resolve maps a query to an ordered list of assets. Zero matches is an
// empty list, never an error; the caller produces the "not found" reply.
func (r *Resolver) Resolve(query string) []Asset {
	msg := strings.ToLower(strings.TrimSpace(query))

	if msg == "" || containsAnyWord(msg, allKeywords) {
		return r.listAll()
	}

	// First pass: keyword → folder.
	for _, entry := range r.folders {
		for _, keyword := range entry.Keywords {
			if strings.Contains(msg, strings.ToLower(keyword)) {
				leftovers := leftoverTerms(msg, keyword)
				assets := r.listFolder(entry.Folder, leftovers)
				if len(assets) == 0 && len(leftovers) > 0 {
					// Narrowing emptied the folder; fall back to the
					// unnarrowed listing.
					assets = r.listFolder(entry.Folder, nil)
				}
				return assets
			}
		}
	}

	// Second pass: filename search across every known folder.
	terms := strings.Fields(msg)
	var matched []Asset
	for _, entry := range r.folders {
		for _, asset := range r.listFolder(entry.Folder, terms) {
			matched = append(matched, asset)
		}
	}
	sortAssets(matched)
	return matched
}

// listFolder lists the visual files of one folder newest-first,
// optionally narrowed to names containing any of the terms.
func (r *Resolver) listFolder(folder string, terms []string) []Asset {
	dir := filepath.Join(r.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Debug("Asset folder unreadable", zap.String("folder", dir), zap.Error(err))
		return nil
	}

	var assets []Asset
	for _, entry := range entries {
		if entry.IsDir() || !isVisualFile(entry.Name()) {
			continue
		}
		if len(terms) > 0 && !nameMatches(entry.Name(), terms) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		assets = append(assets, Asset{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	sortAssets(assets)
	return assets
}

func (r *Resolver) listAll() []Asset {
	var assets []Asset
	for _, entry := range r.folders {
		assets = append(assets, r.listFolder(entry.Folder, nil)...)
	}
	sortAssets(assets)
	return assets
}

// sortAssets orders newest-first with name as the tiebreaker, keeping
// resolution deterministic for an unchanged file system.
func sortAssets(assets []Asset) {
	sort.Slice(assets, func(i, j int) bool {
		if !assets[i].ModTime.Equal(assets[j].ModTime) {
			return assets[i].ModTime.After(assets[j].ModTime)
		}
		return assets[i].Name < assets[j].Name
	})
}

var visualExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".pdf": {},
}

func isVisualFile(name string) bool {
	_, ok := visualExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func nameMatches(name string, terms []string) bool {
	lower := strings.ToLower(name)
	for _, term := range terms {
		if len(term) < 3 {
			continue
		}
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// leftoverTerms returns the query words that were not part of the folder
// keyword and are long enough to narrow by.
func leftoverTerms(msg, keyword string) []string {
	stripped := strings.ReplaceAll(msg, strings.ToLower(keyword), " ")
	var terms []string
	for _, word := range strings.Fields(stripped) {
		if len(word) >= 3 && !isNoiseWord(word) {
			terms = append(terms, word)
		}
	}
	return terms
}

var noiseWords = map[string]struct{}{
	"the": {}, "for": {}, "show": {}, "tampilkan": {}, "tolong": {}, "please": {},
	"dashboard": {}, "gambar": {}, "image": {}, "file": {}, "yang": {}, "untuk": {},
	"kirim": {}, "send": {}, "give": {}, "berikan": {}, "ambil": {}, "lihat": {},
}

func isNoiseWord(word string) bool {
	_, ok := noiseWords[word]
	return ok
}

func containsAnyWord(msg string, words []string) bool {
	for _, field := range strings.Fields(msg) {
		for _, w := range words {
			if field == w {
				return true
			}
		}
	}
	return false
}
