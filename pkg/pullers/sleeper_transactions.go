package pullers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
	"github.com/tatnall-legacy/leaguemirror/pkg/ratelimit"
	"github.com/tatnall-legacy/leaguemirror/pkg/sleeper"
)

const sleeperDir = "sleeper"

// sleeperRequestRate paces round fetches against the public Sleeper API.
const sleeperRequestRate = 5.0 // req/s

// SleeperTransactions refreshes one season's transaction history for a
// Sleeper league, round by round, into
// data_raw/sleeper/transactions-<season>.json.
type SleeperTransactions struct {
	// Client overrides the default Sleeper client (tests)
	Client *sleeper.Client

	LeagueID string
	Season   int
	MaxRound int

	RepoRoot string
	DataPath string

	limiter *ratelimit.Limiter
}

type sleeperArchive struct {
	Season       int              `json:"season"`
	LeagueID     string           `json:"league_id"`
	Transactions []map[string]any `json:"transactions"`
}

// Name implements puller.Puller.
func (p *SleeperTransactions) Name() string { return "Sleeper transactions" }

// Type implements puller.Puller.
func (p *SleeperTransactions) Type() string { return "sleeper-transactions" }

// Source implements puller.Puller.
func (p *SleeperTransactions) Source() string { return "sleeper" }

// HealthCheck verifies a league id is resolvable, either from configuration
// or from the season file a previous pull left behind.
func (p *SleeperTransactions) HealthCheck(ctx context.Context) error {
	_, err := p.resolveLeagueID()
	return err
}

// resolveLeagueID returns the configured league id, falling back to the
// league_id recorded in data_raw/sleeper/<season>.json.
func (p *SleeperTransactions) resolveLeagueID() (string, error) {
	if p.LeagueID != "" {
		return p.LeagueID, nil
	}

	seasonPath := filepath.Join(p.RepoRoot, p.DataPath, sleeperDir, fmt.Sprintf("%d.json", p.Season))
	var payload map[string]any
	if err := readJSON(seasonPath, &payload); err != nil {
		return "", fmt.Errorf("missing Sleeper league id and no season file at %s: %w", seasonPath, err)
	}

	for _, key := range []string{"league_id", "leagueId"} {
		if id, ok := payload[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("season file %s has no league id", seasonPath)
}

// Pull implements puller.Puller.
func (p *SleeperTransactions) Pull(ctx context.Context) (*puller.Result, error) {
	leagueID, err := p.resolveLeagueID()
	if err != nil {
		return nil, err
	}

	client := p.Client
	if client == nil {
		client = sleeper.NewClient(sleeper.ClientConfig{})
	}
	if p.limiter == nil {
		p.limiter = ratelimit.NewLimiter(sleeperRequestRate, 1)
	}

	start := time.Now()
	var all []map[string]any

	for round := 1; round <= p.MaxRound; round++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		transactions, err := client.Transactions(ctx, leagueID, round)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}

		for _, tx := range transactions {
			if week, ok := tx["week"].(float64); !ok || week == 0 {
				tx["week"] = round
			}
			all = append(all, tx)
		}
	}

	relPath := filepath.Join(p.DataPath, sleeperDir, fmt.Sprintf("transactions-%d.json", p.Season))
	if err := writeJSON(filepath.Join(p.RepoRoot, relPath), sleeperArchive{
		Season:       p.Season,
		LeagueID:     leagueID,
		Transactions: all,
	}); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"season":       p.Season,
		"league_id":    leagueID,
		"transactions": len(all),
	}).Info("saved Sleeper transactions")

	return &puller.Result{
		Files:    []string{relPath},
		Records:  len(all),
		Duration: time.Since(start),
	}, nil
}

func init() {
	puller.RegisterFactory("sleeper-transactions", func(cfg *config.Config) (puller.Puller, error) {
		return &SleeperTransactions{
			LeagueID: cfg.Sleeper.LeagueID,
			Season:   cfg.Sleeper.Season,
			MaxRound: cfg.Sleeper.MaxRound,
			RepoRoot: cfg.Repository.Path,
			DataPath: cfg.Repository.DataPath,
		}, nil
	})
}
