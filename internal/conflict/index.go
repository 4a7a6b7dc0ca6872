package conflict

import (
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

type fieldDateKey struct {
	fieldID string
	date    time.Time
}

type teamDateKey struct {
	teamID string
	date   time.Time
}

// Index is an in-memory GameLookup keyed by (field, date) and (team, date).
// It replaces owned back-collections on fields and teams. A scheduling run
// owns its index and adds its own placements as it goes.
type Index struct {
	byField map[fieldDateKey][]domain.Game
	byTeam  map[teamDateKey][]domain.Game
}

func NewIndex(games []domain.Game) *Index {
	idx := &Index{
		byField: make(map[fieldDateKey][]domain.Game),
		byTeam:  make(map[teamDateKey][]domain.Game),
	}
	for _, g := range games {
		idx.Add(g)
	}
	return idx
}

// Add records g. Field-less games are only indexed by team.
func (idx *Index) Add(g domain.Game) {
	date := domain.Day(g.Date)
	if g.HasField() {
		k := fieldDateKey{g.FieldID, date}
		idx.byField[k] = append(idx.byField[k], g)
	}
	idx.byTeam[teamDateKey{g.HomeTeamID, date}] = append(idx.byTeam[teamDateKey{g.HomeTeamID, date}], g)
	if g.AwayTeamID != g.HomeTeamID {
		idx.byTeam[teamDateKey{g.AwayTeamID, date}] = append(idx.byTeam[teamDateKey{g.AwayTeamID, date}], g)
	}
}

func (idx *Index) GamesOnField(fieldID string, date time.Time) []domain.Game {
	return idx.byField[fieldDateKey{fieldID, domain.Day(date)}]
}

func (idx *Index) GamesForTeam(teamID string, date time.Time) []domain.Game {
	return idx.byTeam[teamDateKey{teamID, domain.Day(date)}]
}
