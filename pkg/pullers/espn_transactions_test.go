package pullers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tatnall-legacy/leaguemirror/pkg/espn"
)

// newESPNServer serves settings, transactions and team views for a single
// league. txByPeriod maps a scoring period to the transaction objects the
// mTransactions2 view returns for it.
func newESPNServer(finalPeriod int, txByPeriod map[string][]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Query().Get("view") {
		case "mSettings":
			fmt.Fprintf(w, `{"status": {"finalScoringPeriod": %d}}`, finalPeriod)
		case "mTeam":
			fmt.Fprint(w, `{"teams": [{"id": 1, "name": "Twin Pines"}], "members": [{"id": "{G}"}]}`)
		default:
			period := r.URL.Query().Get("scoringPeriodId")
			fmt.Fprintf(w, `{"transactions": [%s]}`, strings.Join(txByPeriod[period], ","))
		}
	}))
}

func newTransactionsPuller(server *httptest.Server, root string) *ESPNTransactions {
	return &ESPNTransactions{
		Client:      espn.NewClient(espn.ClientConfig{LeagueID: "12345", BaseURL: server.URL}),
		LeagueID:    "12345",
		StartSeason: 2023,
		EndSeason:   2023,
		RepoRoot:    root,
		DataPath:    "data_raw",
	}
}

func TestTransactionsPullDeduplicatesAndTags(t *testing.T) {
	server := newESPNServer(2, map[string][]string{
		"1": {`{"id": "t1", "type": "TRADE"}`, `{"id": "t2", "type": "WAIVER"}`},
		"2": {`{"id": "t2", "type": "WAIVER"}`, `{"id": "t3", "type": "FREEAGENT"}`},
	})
	defer server.Close()

	root := t.TempDir()
	result, err := newTransactionsPuller(server, root).Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	if result.Records != 3 {
		t.Errorf("records = %d, want 3 after dedupe", result.Records)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected season file and combined file, got %v", result.Files)
	}

	data, err := os.ReadFile(filepath.Join(root, "data_raw", "espn_transactions", "transactions_2023.json"))
	if err != nil {
		t.Fatalf("reading season file: %v", err)
	}
	var archive seasonArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		t.Fatalf("decoding season file: %v", err)
	}

	if archive.Season != 2023 || archive.LeagueID != "12345" {
		t.Errorf("header = %d/%s, want 2023/12345", archive.Season, archive.LeagueID)
	}
	if len(archive.Transactions) != 3 {
		t.Fatalf("season transactions = %d, want 3", len(archive.Transactions))
	}

	ids := make(map[string]map[string]any)
	for _, tx := range archive.Transactions {
		ids[fmt.Sprint(tx["id"])] = tx
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("transaction %s missing from archive", id)
		}
	}

	// t2 appears in both periods; the first occurrence wins.
	if got := ids["t2"]["scoringPeriodId"]; got != float64(1) {
		t.Errorf("t2 scoringPeriodId = %v, want 1", got)
	}
	if got := ids["t1"]["season"]; got != float64(2023) {
		t.Errorf("t1 season = %v, want 2023", got)
	}
	if got := ids["t1"]["__view"]; got != "mTransactions2" {
		t.Errorf("t1 __view = %v, want mTransactions2", got)
	}

	if archive.Teams == nil || archive.Members == nil {
		t.Error("expected teams and members captured alongside transactions")
	}
}

func TestTransactionsPullWritesCombinedArchive(t *testing.T) {
	server := newESPNServer(1, map[string][]string{
		"1": {`{"id": "t1"}`},
	})
	defer server.Close()

	root := t.TempDir()
	p := newTransactionsPuller(server, root)
	if _, err := p.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "data_raw", "espn_transactions", "transactions_2023_2023.json"))
	if err != nil {
		t.Fatalf("reading combined file: %v", err)
	}
	var combined combinedArchive
	if err := json.Unmarshal(data, &combined); err != nil {
		t.Fatalf("decoding combined file: %v", err)
	}

	if combined.StartSeason != 2023 || combined.EndSeason != 2023 {
		t.Errorf("season range = %d..%d, want 2023..2023", combined.StartSeason, combined.EndSeason)
	}
	if combined.BySeason["2023"] != 1 {
		t.Errorf("by_season[2023] = %d, want 1", combined.BySeason["2023"])
	}
	if len(combined.Transactions) != 1 {
		t.Errorf("combined transactions = %d, want 1", len(combined.Transactions))
	}
	if combined.GeneratedAt == "" {
		t.Error("expected generated_at timestamp")
	}
}

func TestTransactionsPullEmptyRecentSeasonIsError(t *testing.T) {
	server := newESPNServer(1, map[string][]string{})
	defer server.Close()

	p := newTransactionsPuller(server, t.TempDir())
	p.MinNonemptySeason = 2023

	_, err := p.Pull(context.Background())
	if err == nil {
		t.Fatal("expected error for empty recent season")
	}
	if !strings.Contains(err.Error(), "stale cookie?") {
		t.Errorf("error %q should hint at a stale cookie", err)
	}
	if !strings.Contains(err.Error(), "season 2023") {
		t.Errorf("error %q should name the empty season", err)
	}
}

func TestTransactionsPullEmptyOldSeasonIsAllowed(t *testing.T) {
	server := newESPNServer(1, map[string][]string{})
	defer server.Close()

	root := t.TempDir()
	p := newTransactionsPuller(server, root)
	p.StartSeason = 2018
	p.EndSeason = 2018
	p.MinNonemptySeason = 2021

	result, err := p.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if result.Records != 0 {
		t.Errorf("records = %d, want 0", result.Records)
	}

	if _, err := os.Stat(filepath.Join(root, "data_raw", "espn_transactions", "transactions_2018.json")); err != nil {
		t.Errorf("empty season should still be archived: %v", err)
	}
}

func TestTransactionsHealthCheckRequiresCookieFile(t *testing.T) {
	p := &ESPNTransactions{CookieFile: filepath.Join(t.TempDir(), "missing.txt")}
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for missing cookie file")
	}
}
