package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/storage"
)

func seedThread(t *testing.T, store storage.Storage) string {
	t.Helper()
	ctx := context.Background()
	thread := &models.Thread{ID: "t1", UserID: "andi", BotName: "helper", Title: "Budget questions", CreatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("creating thread: %v", err)
	}
	msgs := []*models.Message{
		{ID: "m1", ThreadID: "t1", UserID: "andi", BotName: "helper", Role: models.RoleUser, Content: "what is the budget, with \"quotes\"?", CreatedAt: thread.CreatedAt},
		{ID: "m2", ThreadID: "t1", UserID: "andi", BotName: "helper", Role: models.RoleAssistant, Content: "About 2M.", Attachments: []models.FileAttachment{{Name: "budget.pdf"}}, CreatedAt: thread.CreatedAt.Add(time.Minute)},
	}
	for _, m := range msgs {
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("appending message: %v", err)
		}
	}
	return thread.ID
}

func TestWriteThreadJSON(t *testing.T) {
	store := storage.NewMemoryStorage()
	id := seedThread(t, store)

	var buf bytes.Buffer
	if err := New(store).WriteThread(context.Background(), &buf, id, FormatJSON); err != nil {
		t.Fatalf("WriteThread: %v", err)
	}

	var doc ThreadExport
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.Title != "Budget questions" || len(doc.Messages) != 2 {
		t.Fatalf("unexpected export %+v", doc)
	}
	if doc.Messages[1].Attachments[0].Name != "budget.pdf" {
		t.Fatalf("attachments not exported")
	}
}

func TestWriteThreadCSV(t *testing.T) {
	store := storage.NewMemoryStorage()
	id := seedThread(t, store)

	var buf bytes.Buffer
	if err := New(store).WriteThread(context.Background(), &buf, id, FormatCSV); err != nil {
		t.Fatalf("WriteThread: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "timestamp" || records[1][1] != "user" || records[2][1] != "assistant" {
		t.Fatalf("unexpected records %v", records)
	}
	if records[1][3] != "what is the budget, with \"quotes\"?" {
		t.Fatalf("quoting broke the content column: %q", records[1][3])
	}
	if records[2][4] != "budget.pdf" {
		t.Fatalf("attachment column %q", records[2][4])
	}
}

func TestWriteThreadUnknownThread(t *testing.T) {
	store := storage.NewMemoryStorage()
	var buf bytes.Buffer
	err := New(store).WriteThread(context.Background(), &buf, "missing", FormatJSON)
	if err == nil {
		t.Fatal("expected an error for a missing thread")
	}
}

func TestParseFormatAndFilename(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("default format: %v %v", f, err)
	}
	if f, err := ParseFormat("CSV"); err != nil || f != FormatCSV {
		t.Fatalf("csv format: %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("xml should be rejected")
	}

	name := Filename("q3/report: draft?", FormatCSV)
	if strings.ContainsAny(name, "/:?") {
		t.Fatalf("filename not sanitized: %q", name)
	}
	if !strings.HasSuffix(name, ".csv") {
		t.Fatalf("missing extension: %q", name)
	}
}
