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

const lineupsDir = "espn_lineups"

// Lineup slots 20 and 21 are the bench and injured reserve; every other
// slot counts as a start.
const (
	slotBench            = 20
	slotInjuredReserve   = 21
	lineupWeeksPerSeason = 18
)

// ESPNLineups refreshes weekly lineup data for an ESPN league across a
// season range. Each week is written to
// data_raw/espn_lineups/<season>/week-<n>.json.
type ESPNLineups struct {
	// Client overrides the lazily built ESPN client (tests)
	Client *espn.Client

	LeagueID          string
	StartSeason       int
	EndSeason         int
	CookieFile        string
	CookiePassthrough bool

	RepoRoot string
	DataPath string

	// BaseURL overrides the ESPN API host (tests)
	BaseURL string
}

// LineupRow is one player's slot in one team's weekly lineup.
type LineupRow struct {
	Week     int    `json:"week"`
	Team     string `json:"team"`
	PlayerID string `json:"player_id"`
	Started  bool   `json:"started"`
	Points   any    `json:"points"`
}

type weekArchive struct {
	Season  int         `json:"season"`
	Week    int         `json:"week"`
	Lineups []LineupRow `json:"lineups"`
}

// Name implements puller.Puller.
func (p *ESPNLineups) Name() string { return "ESPN lineups" }

// Type implements puller.Puller.
func (p *ESPNLineups) Type() string { return "espn-lineups" }

// Source implements puller.Puller.
func (p *ESPNLineups) Source() string { return "espn" }

// HealthCheck verifies the stored cookie can be loaded.
func (p *ESPNLineups) HealthCheck(ctx context.Context) error {
	_, err := espn.LoadCookie(p.CookieFile, p.CookiePassthrough)
	return err
}

func (p *ESPNLineups) client() (*espn.Client, error) {
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
func (p *ESPNLineups) Pull(ctx context.Context) (*puller.Result, error) {
	client, err := p.client()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records := 0
	var files []string

	for season := p.StartSeason; season <= p.EndSeason; season++ {
		for week := 1; week <= lineupWeeksPerSeason; week++ {
			payload, err := client.Rosters(ctx, season, week)
			if err != nil {
				return nil, fmt.Errorf("season %d week %d: %w", season, week, err)
			}

			lineups := ParseLineups(payload, week)

			relPath := filepath.Join(p.DataPath, lineupsDir, fmt.Sprintf("%d", season), fmt.Sprintf("week-%d.json", week))
			if err := writeJSON(filepath.Join(p.RepoRoot, relPath), weekArchive{
				Season:  season,
				Week:    week,
				Lineups: lineups,
			}); err != nil {
				return nil, err
			}

			files = append(files, relPath)
			records += len(lineups)

			log.WithFields(map[string]interface{}{
				"season":  season,
				"week":    week,
				"lineups": len(lineups),
			}).Debug("saved ESPN lineups")
		}
	}

	return &puller.Result{
		Files:    files,
		Records:  records,
		Duration: time.Since(start),
	}, nil
}

// ParseLineups flattens a roster payload into lineup rows. A player counts
// as started unless slotted on the bench or injured reserve.
func ParseLineups(payload map[string]any, week int) []LineupRow {
	teams, _ := payload["teams"].([]any)
	members, _ := payload["members"].([]any)

	memberByID := make(map[string]map[string]any)
	for _, m := range members {
		member, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := member["id"].(string); ok && id != "" {
			memberByID[id] = member
		}
	}

	teamNameByID := make(map[string]string)
	for _, t := range teams {
		team, ok := t.(map[string]any)
		if !ok {
			continue
		}
		id, ok := team["id"].(float64)
		if !ok {
			continue
		}
		teamNameByID[fmt.Sprintf("%.0f", id)] = teamName(team, memberByID)
	}

	var lineups []LineupRow
	for _, t := range teams {
		team, ok := t.(map[string]any)
		if !ok {
			continue
		}
		teamID, _ := team["id"].(float64)
		roster, _ := team["roster"].(map[string]any)
		entries, _ := roster["entries"].([]any)

		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			playerID, ok := entry["playerId"].(float64)
			if !ok {
				continue
			}

			slot, _ := entry["lineupSlotId"].(float64)
			started := int(slot) != slotBench && int(slot) != slotInjuredReserve

			name, ok := teamNameByID[fmt.Sprintf("%.0f", teamID)]
			if !ok {
				name = fmt.Sprintf("Team %.0f", teamID)
			}

			lineups = append(lineups, LineupRow{
				Week:     week,
				Team:     name,
				PlayerID: fmt.Sprintf("%.0f", playerID),
				Started:  started,
				Points:   entry["appliedStatTotal"],
			})
		}
	}
	return lineups
}

// teamName resolves a display name for a team: its explicit name, then
// location+nickname, then the first owner's display name, then a fallback
// built from the team id.
func teamName(team map[string]any, memberByID map[string]map[string]any) string {
	if name, ok := team["name"].(string); ok && name != "" {
		return name
	}

	location, _ := team["location"].(string)
	nickname, _ := team["nickname"].(string)
	if combined := joinNonEmpty(location, nickname); combined != "" {
		return combined
	}

	if owners, ok := team["owners"].([]any); ok && len(owners) > 0 {
		if ownerID, ok := owners[0].(string); ok {
			if owner, ok := memberByID[ownerID]; ok {
				if name, ok := owner["displayName"].(string); ok && name != "" {
					return name
				}
				if name, ok := owner["firstName"].(string); ok && name != "" {
					return name
				}
			}
		}
	}

	if id, ok := team["id"].(float64); ok {
		return fmt.Sprintf("Team %.0f", id)
	}
	return "Team <nil>"
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}

func init() {
	puller.RegisterFactory("espn-lineups", func(cfg *config.Config) (puller.Puller, error) {
		return &ESPNLineups{
			LeagueID:          cfg.ESPN.LeagueID,
			StartSeason:       cfg.ESPN.StartSeason,
			EndSeason:         cfg.ESPN.EndSeason,
			CookieFile:        cfg.ESPN.CookieFile,
			CookiePassthrough: cfg.ESPN.CookiePassthrough,
			RepoRoot:          cfg.Repository.Path,
			DataPath:          cfg.Repository.DataPath,
		}, nil
	})
}
