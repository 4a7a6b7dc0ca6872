package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/config"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/excel"
)

// Violation represents a problem found in a schedule workbook.
type Violation struct {
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Validate reads a schedule workbook and re-checks every game on its master
// sheet against the configured fields, the other configured games and the
// rest of the workbook.
func Validate(cfg *config.Config, seasonID, path string) ([]Violation, error) {
	season, ok := cfg.Season(seasonID)
	if !ok {
		return nil, fmt.Errorf("unknown season %q", seasonID)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	fields := cfg.DomainFields()
	games, violations, err := readGames(f, season.Domain(), fields)
	if err != nil {
		return nil, fmt.Errorf("reading games: %w", err)
	}

	var others []domain.Game
	for _, g := range cfg.Games() {
		if g.SeasonID != seasonID {
			others = append(others, g)
		}
	}

	idx, err := availability.NewIndex(fields)
	if err != nil {
		return nil, err
	}

	var blackouts []time.Time
	for _, b := range season.BlackoutDates {
		blackouts = append(blackouts, b.Date.Time)
	}

	violations = append(violations, checkTeams(season.DomainTeams(), games)...)
	violations = append(violations, checkDates(season.Domain(), blackouts, games)...)
	violations = append(violations, checkConflicts(idx, others, games)...)
	violations = append(violations, checkGameCompleteness(season.DomainTeams(), season.Options.DoubleRoundRobin, games)...)

	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Row < violations[j].Row })
	return violations, nil
}

type parsedGame struct {
	Row  int
	Game domain.Game
}

func readGames(f *excelize.File, season domain.Season, fields []domain.Field) ([]parsedGame, []Violation, error) {
	rows, err := f.GetRows(excel.MasterSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", excel.MasterSheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", excel.MasterSheet)
	}

	var names []string
	for _, field := range fields {
		names = append(names, field.Name)
	}
	byColumn := make(map[string]string, len(fields))
	for _, field := range fields {
		byColumn[excel.FieldColumnName(field.Name, names)] = field.ID
	}

	// Header row determines field columns (index 3+)
	header := rows[0]
	var violations []Violation
	fieldCols := make(map[int]string)
	for i := 3; i < len(header); i++ {
		id, ok := byColumn[header[i]]
		if !ok {
			violations = append(violations, Violation{
				Row: 1, Type: "error",
				Message: fmt.Sprintf("column %q does not match any configured field", header[i]),
			})
			continue
		}
		fieldCols[i] = id
	}

	var games []parsedGame
	for i, row := range rows {
		if i == 0 || len(row) < 3 || row[0] == "" {
			continue
		}
		rowNum := i + 1
		date, err := time.Parse(excel.DateFormat, row[0])
		if err != nil {
			violations = append(violations, Violation{Row: rowNum, Type: "error", Message: fmt.Sprintf("bad date %q", row[0])})
			continue
		}
		start, err := domain.ParseTimeOfDay(row[2])
		if err != nil {
			violations = append(violations, Violation{Row: rowNum, Type: "error", Message: err.Error()})
			continue
		}

		for col := 3; col < len(row); col++ {
			fieldID, ok := fieldCols[col]
			if !ok || row[col] == "" {
				continue
			}
			for n, part := range strings.Split(row[col], "; ") {
				away, home, ok := parseGameCell(part)
				if !ok {
					continue // usage block text, not a game
				}
				games = append(games, parsedGame{
					Row: rowNum,
					Game: domain.Game{
						ID:         fmt.Sprintf("row%d-%s-%d", rowNum, fieldID, n),
						SeasonID:   season.ID,
						Date:       date,
						Start:      start,
						Duration:   season.GameDuration,
						HomeTeamID: home,
						AwayTeamID: away,
						FieldID:    fieldID,
						Status:     domain.StatusScheduled,
					},
				})
			}
		}
	}
	return games, violations, nil
}

// parseGameCell parses "Away @ Home" and returns (away, home, true).
// Returns ("", "", false) if the cell doesn't match the game format.
func parseGameCell(cell string) (away, home string, ok bool) {
	away, home, ok = strings.Cut(cell, " @ ")
	if !ok || away == "" || home == "" {
		return "", "", false
	}
	return strings.TrimSpace(away), strings.TrimSpace(home), true
}

func checkTeams(teams []domain.Team, games []parsedGame) []Violation {
	known := make(map[string]bool, len(teams))
	for _, t := range teams {
		known[t.ID] = true
	}
	var violations []Violation
	for _, g := range games {
		for _, team := range []string{g.Game.HomeTeamID, g.Game.AwayTeamID} {
			if !known[team] {
				violations = append(violations, Violation{
					Row: g.Row, Type: "error",
					Message: fmt.Sprintf("%q is not a team in this season", team),
				})
			}
		}
	}
	return violations
}

func checkDates(season domain.Season, blackouts []time.Time, games []parsedGame) []Violation {
	blackedOut := make(map[time.Time]bool, len(blackouts))
	for _, d := range blackouts {
		blackedOut[domain.Day(d)] = true
	}
	var violations []Violation
	for _, g := range games {
		date := domain.Day(g.Game.Date)
		if date.Before(domain.Day(season.StartDate)) || date.After(domain.Day(season.EndDate)) {
			violations = append(violations, Violation{
				Row: g.Row, Type: "error",
				Message: fmt.Sprintf("%s is outside the season", date.Format(domain.DateLayout)),
			})
		}
		if blackedOut[date] {
			violations = append(violations, Violation{
				Row: g.Row, Type: "error",
				Message: fmt.Sprintf("%s is a blackout date", date.Format(domain.DateLayout)),
			})
		}
	}
	return violations
}

// checkConflicts runs the conflict detector on every game against all the
// others, so edits made in the workbook are caught.
func checkConflicts(idx *availability.Index, others []domain.Game, games []parsedGame) []Violation {
	all := append([]domain.Game(nil), others...)
	for _, g := range games {
		all = append(all, g.Game)
	}
	d := conflict.Detector{Availability: idx, Games: conflict.NewIndex(all)}

	var violations []Violation
	for _, g := range games {
		for _, c := range d.Check(conflict.FromGame(g.Game), g.Game.ID).Conflicts {
			violations = append(violations, Violation{
				Row: g.Row, Type: "error",
				Message: fmt.Sprintf("%s @ %s: %s", g.Game.AwayTeamID, g.Game.HomeTeamID, c),
			})
		}
	}
	return violations
}

func checkGameCompleteness(teams []domain.Team, double bool, games []parsedGame) []Violation {
	want := 1
	if double {
		want = 2
	}
	type pair struct{ a, b string }
	key := func(x, y string) pair {
		if x > y {
			x, y = y, x
		}
		return pair{x, y}
	}
	counts := make(map[pair]int)
	for _, g := range games {
		counts[key(g.Game.HomeTeamID, g.Game.AwayTeamID)]++
	}

	var violations []Violation
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			k := key(teams[i].ID, teams[j].ID)
			n := counts[k]
			if n == want {
				continue
			}
			violations = append(violations, Violation{
				Type:    "warning",
				Message: fmt.Sprintf("%s vs %s: %d games, expected %d", k.a, k.b, n, want),
			})
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Message < violations[j].Message })
	return violations
}
