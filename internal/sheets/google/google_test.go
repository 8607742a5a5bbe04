package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetmail/internal/core"
	ports "budgetmail/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:      "sid",
		ServiceAccountFile: "/non/existent/credentials.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file read error, got %v", err)
	}
}

func TestClient_ArchiveReportWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Reports"}
	if _, err := c.ArchiveReport(context.Background(), ports.ReportRecord{Period: "2024-03"}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestClient_ArchiveReport(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  struct {
			Values [][]any `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sid","updates":{"updatedRange":"Reports!A7:I7","updatedRows":1}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := NewWithService(svc, "sid", "Reports")

	ref, err := c.ArchiveReport(context.Background(), ports.ReportRecord{
		Period:      "2024-03",
		UserID:      4,
		Username:    "asha",
		Recipient:   "asha@example.com",
		Budget:      core.Money{Cents: 20000},
		TotalSpent:  core.Money{Cents: 15000},
		Remaining:   core.Money{Cents: 5000},
		TopMerchant: "A",
		SentAt:      time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ArchiveReport() error = %v", err)
	}
	if ref != "Reports!A7:I7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sid/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 9 {
		t.Fatalf("unexpected row: %+v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[0] != "2024-03" || row[5] != "200.00" || row[6] != "150.00" || row[7] != "50.00" || row[8] != "A" {
		t.Errorf("unexpected row values: %+v", row)
	}
}

func TestCentsToDecimal(t *testing.T) {
	tests := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		15000:  "150.00",
		-1050:  "-10.50",
		123456: "1234.56",
	}
	for in, want := range tests {
		if got := centsToDecimal(in); got != want {
			t.Errorf("centsToDecimal(%d) = %q, want %q", in, got, want)
		}
	}
}
