package pullers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
	"github.com/tatnall-legacy/leaguemirror/pkg/espn"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
)

// transactionsDir is the data_raw subtree the ESPN transactions job owns.
const transactionsDir = "espn_transactions"

// ESPNTransactions refreshes transaction history for an ESPN league across
// a season range. Each season is written to its own archive file, plus a
// combined file spanning the whole range.
type ESPNTransactions struct {
	// Client overrides the lazily built ESPN client (tests)
	Client *espn.Client

	LeagueID          string
	StartSeason       int
	EndSeason         int
	MinNonemptySeason int
	CookieFile        string
	CookiePassthrough bool

	// RepoRoot is the data repository working copy
	RepoRoot string
	// DataPath is the data subtree within the repository
	DataPath string

	// BaseURL overrides the ESPN API host (tests)
	BaseURL string
}

type seasonArchive struct {
	Season       int              `json:"season"`
	LeagueID     string           `json:"league_id"`
	GeneratedAt  string           `json:"generated_at"`
	Transactions []map[string]any `json:"transactions"`
	Teams        any              `json:"teams"`
	Members      any              `json:"members"`
}

type combinedArchive struct {
	LeagueID     string           `json:"league_id"`
	StartSeason  int              `json:"start_season"`
	EndSeason    int              `json:"end_season"`
	GeneratedAt  string           `json:"generated_at"`
	Transactions []map[string]any `json:"transactions"`
	BySeason     map[string]int   `json:"by_season"`
}

// Name implements puller.Puller.
func (p *ESPNTransactions) Name() string { return "ESPN transactions" }

// Type implements puller.Puller.
func (p *ESPNTransactions) Type() string { return "espn-transactions" }

// Source implements puller.Puller.
func (p *ESPNTransactions) Source() string { return "espn" }

// HealthCheck verifies the stored cookie can be loaded. No network call is
// made; an expired cookie only shows up on the first real fetch.
func (p *ESPNTransactions) HealthCheck(ctx context.Context) error {
	_, err := espn.LoadCookie(p.CookieFile, p.CookiePassthrough)
	return err
}

func (p *ESPNTransactions) client() (*espn.Client, error) {
	if p.Client != nil {
		return p.Client, nil
	}

	cookie, err := espn.LoadCookie(p.CookieFile, p.CookiePassthrough)
	if err != nil {
		return nil, err
	}
	p.Client = espn.NewClient(espn.ClientConfig{
		LeagueID: p.LeagueID,
		Cookie:   cookie,
		BaseURL:  p.BaseURL,
	})
	return p.Client, nil
}

// Pull implements puller.Puller.
func (p *ESPNTransactions) Pull(ctx context.Context) (*puller.Result, error) {
	client, err := p.client()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outDir := filepath.Join(p.RepoRoot, p.DataPath, transactionsDir)

	var combined []map[string]any
	bySeason := make(map[string]int)
	var files []string

	for season := p.StartSeason; season <= p.EndSeason; season++ {
		archive, err := p.pullSeason(ctx, client, season)
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", season, err)
		}

		count := len(archive.Transactions)
		if p.MinNonemptySeason > 0 && season >= p.MinNonemptySeason && count == 0 {
			return nil, fmt.Errorf("season %d returned no transactions but seasons from %d are expected to have them (stale cookie?)",
				season, p.MinNonemptySeason)
		}

		relPath := filepath.Join(p.DataPath, transactionsDir, fmt.Sprintf("transactions_%d.json", season))
		if err := writeJSON(filepath.Join(outDir, fmt.Sprintf("transactions_%d.json", season)), archive); err != nil {
			return nil, err
		}
		files = append(files, relPath)

		bySeason[fmt.Sprintf("%d", season)] = count
		combined = append(combined, archive.Transactions...)

		log.WithFields(map[string]interface{}{
			"season":       season,
			"transactions": count,
		}).Info("saved ESPN transactions")
	}

	combinedName := fmt.Sprintf("transactions_%d_%d.json", p.StartSeason, p.EndSeason)
	if err := writeJSON(filepath.Join(outDir, combinedName), combinedArchive{
		LeagueID:     p.LeagueID,
		StartSeason:  p.StartSeason,
		EndSeason:    p.EndSeason,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Transactions: combined,
		BySeason:     bySeason,
	}); err != nil {
		return nil, err
	}
	files = append(files, filepath.Join(p.DataPath, transactionsDir, combinedName))

	return &puller.Result{
		Files:    files,
		Records:  len(combined),
		Duration: time.Since(start),
	}, nil
}

// pullSeason fetches one season: the final scoring period from settings,
// every period's transactions deduplicated by id, and the team/member roster.
func (p *ESPNTransactions) pullSeason(ctx context.Context, client *espn.Client, season int) (*seasonArchive, error) {
	settings, err := client.Settings(ctx, season)
	if err != nil {
		return nil, err
	}
	finalPeriod := espn.FinalScoringPeriod(settings)

	var transactions []map[string]any
	seen := make(map[string]bool)

	for period := 1; period <= finalPeriod; period++ {
		items, viewUsed, err := client.Transactions(ctx, season, period)
		if err != nil {
			return nil, fmt.Errorf("scoring period %d: %w", period, err)
		}

		for _, item := range items {
			if _, ok := item["season"]; !ok {
				item["season"] = season
			}
			if _, ok := item["scoringPeriodId"]; !ok {
				item["scoringPeriodId"] = period
			}
			if viewUsed != "" {
				if _, ok := item["__view"]; !ok {
					item["__view"] = viewUsed
				}
			}

			if id, ok := item["id"]; ok && id != nil {
				key := fmt.Sprint(id)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			transactions = append(transactions, item)
		}
	}

	teamPayload, err := client.Teams(ctx, season)
	if err != nil {
		return nil, err
	}

	return &seasonArchive{
		Season:       season,
		LeagueID:     p.LeagueID,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Transactions: transactions,
		Teams:        teamPayload["teams"],
		Members:      teamPayload["members"],
	}, nil
}

func init() {
	puller.RegisterFactory("espn-transactions", func(cfg *config.Config) (puller.Puller, error) {
		return &ESPNTransactions{
			LeagueID:          cfg.ESPN.LeagueID,
			StartSeason:       cfg.ESPN.StartSeason,
			EndSeason:         cfg.ESPN.EndSeason,
			MinNonemptySeason: cfg.ESPN.MinNonemptySeason,
			CookieFile:        cfg.ESPN.CookieFile,
			CookiePassthrough: cfg.ESPN.CookiePassthrough,
			RepoRoot:          cfg.Repository.Path,
			DataPath:          cfg.Repository.DataPath,
		}, nil
	})
}
