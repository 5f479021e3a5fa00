package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
)

// maxSupportedExpand is the deepest row-expansion level the tables API
// documents. Higher values get rejected by the service, so we pin to the
// documented maximum instead of over-fetching.
const maxSupportedExpand = 2

const defaultFetchTimeout = 30 * time.Second

// Client talks to the external tables API that hosts the project
// datasets.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		logger:     logger,
	}
}

// Wire types for the tables API.

type apiResponse struct {
	Columns []apiColumn `json:"columns"`
	Rows    []apiRow    `json:"rows"`
}

type apiColumn struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
}

type apiRow struct {
	Cells map[string]apiCell `json:"cells"`
}

type apiCell struct {
	Value   any    `json:"value"`
	Link    string `json:"link,omitempty"`
	Formula string `json:"formula,omitempty"`
	Image   bool   `json:"image,omitempty"`
}

// FetchDataset retrieves the full dataset for a source and maps it into
// a snapshot (without statistics; the cache derives those). The apiKey
// argument overrides the client's default key when non-empty.
func (c *Client) FetchDataset(ctx context.Context, sourceID, apiKey string) (*models.Snapshot, error) {
	url := fmt.Sprintf("%s/v1/tables/%s/rows?expand=%d", c.baseURL, sourceID, maxSupportedExpand)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building dataset request: %v", err)
	}
	if apiKey == "" {
		apiKey = c.apiKey
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching dataset %s: %v", sourceID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("dataset API rejected the API key for source %s (status %d)", sourceID, resp.StatusCode)
	case http.StatusNotFound:
		return nil, fmt.Errorf("dataset source %s not found", sourceID)
	default:
		return nil, fmt.Errorf("dataset API returned status %d for source %s", resp.StatusCode, sourceID)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("error decoding dataset response: %v", err)
	}

	snapshot := &models.Snapshot{
		SourceID: sourceID,
		Columns:  make([]models.Column, 0, len(payload.Columns)),
		Rows:     make([]models.Row, 0, len(payload.Rows)),
	}
	for _, col := range payload.Columns {
		snapshot.Columns = append(snapshot.Columns, models.Column{
			Title:   col.Title,
			Type:    col.Type,
			Primary: col.Primary,
		})
	}
	for _, row := range payload.Rows {
		mapped := make(models.Row, len(row.Cells))
		for title, cell := range row.Cells {
			mapped[title] = models.Cell{
				Value:   cellText(cell.Value),
				Link:    cell.Link,
				Formula: cell.Formula,
				IsImage: cell.Image,
			}
		}
		snapshot.Rows = append(snapshot.Rows, mapped)
	}

	c.logger.Debug("Fetched dataset",
		zap.String("source_id", sourceID),
		zap.Int("columns", len(snapshot.Columns)),
		zap.Int("rows", len(snapshot.Rows)))

	return snapshot, nil
}

// cellText normalizes the API's loosely typed cell values to text.
func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := cellText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
