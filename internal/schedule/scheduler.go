package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/slots"
	"github.com/derekprior/leaguesched/internal/strategy"
)

// gameNamespace seeds name-based game ids so identical inputs produce
// identical ids.
var gameNamespace = uuid.MustParse("6f1c2a4e-8b0d-4c57-9a3e-2d5b7c9e1f30")

const DefaultCadenceDays = 7

// Options tune a generation run. Zero values select the defaults.
type Options struct {
	DoubleRoundRobin bool
	CadenceDays      int           // days between rounds; default 7
	PreferredDay     *time.Weekday // default: weekday of the season start
	FieldPriority    []string      // default: fields in the order given
	GameDuration     time.Duration // default: the season's game duration
	BlackoutDates    []time.Time

	// PackFields lets a field take more than one game per free interval by
	// proposing the gap after games already booked there.
	PackFields bool

	// SkipGameIDs lists games already on the books, such as completed ones.
	// Pairings generating one of these ids are not placed again and are left
	// out of Placed and TeamMetrics.
	SkipGameIDs []string
}

// Reason explains why a pairing was not placed.
type Reason string

const (
	ReasonNoFreeSlot   Reason = "no_free_slot"
	ReasonTeamConflict Reason = "team_conflict"
)

// Unplaced is a pairing the generator could not fit on its round date.
type Unplaced struct {
	Pairing strategy.Pairing
	Date    time.Time
	Reason  Reason
	Detail  string
}

// Outcome tells a finished run from one abandoned through its context.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

// TeamMetrics holds per-team schedule statistics.
type TeamMetrics struct {
	Games    int
	Home     int
	Away     int
	Unplaced int
}

// Result is the output of a generation run. Placed games are in round order,
// then pairing order.
type Result struct {
	Placed      []domain.Game
	Unplaced    []Unplaced
	Outcome     Outcome
	RoundDates  []time.Time
	TeamMetrics map[string]*TeamMetrics
}

// Generator builds season schedules. It holds no per-run state, so one
// Generator may serve concurrent runs.
type Generator struct {
	log zerolog.Logger
}

func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{log: logger}
}

// Generate runs a Generator that discards its logs.
func Generate(ctx context.Context, season domain.Season, teams []domain.Team, fields []domain.Field, existing []domain.Game, opts Options) (*Result, error) {
	return NewGenerator(zerolog.Nop()).Generate(ctx, season, teams, fields, existing, opts)
}

// Generate pairs teams round-robin, maps rounds to dates, and greedily places
// each pairing on the first slot that passes the conflict detector. existing
// is the snapshot of games already booked; it is never modified. Pairings
// that cannot be placed are reported in Result.Unplaced. If ctx is cancelled
// between rounds, the partial result is returned with OutcomeCancelled.
func (g *Generator) Generate(ctx context.Context, season domain.Season, teams []domain.Team, fields []domain.Field, existing []domain.Game, opts Options) (*Result, error) {
	if err := season.Validate(); err != nil {
		return nil, err
	}

	duration := opts.GameDuration
	if duration == 0 {
		duration = season.GameDuration
	}
	if duration <= 0 {
		return nil, domain.Invalid("game duration", "must be positive, got %s", duration)
	}

	cadence := opts.CadenceDays
	if cadence == 0 {
		cadence = DefaultCadenceDays
	}
	preferred := season.StartDate.Weekday()
	if opts.PreferredDay != nil {
		preferred = *opts.PreferredDay
	}

	fieldIndex, err := availability.NewIndex(fields)
	if err != nil {
		return nil, err
	}
	priority, err := fieldPriority(fieldIndex, opts.FieldPriority)
	if err != nil {
		return nil, err
	}

	name := "round_robin"
	if opts.DoubleRoundRobin {
		name = "double_round_robin"
	}
	strat, err := strategy.Get(name)
	if err != nil {
		return nil, err
	}
	rounds, err := strat.Rounds(teams)
	if err != nil {
		return nil, err
	}

	dates, err := RoundDates(season, len(rounds), cadence, preferred, opts.BlackoutDates)
	if err != nil {
		return nil, err
	}

	games := conflict.NewIndex(existing)
	run := &run{
		season:   season,
		duration: duration,
		priority: priority,
		games:    games,
		detector: conflict.Detector{Availability: fieldIndex, Games: games},
		finder:   slots.Finder{Availability: fieldIndex, Games: games, Pack: opts.PackFields},
	}
	skip := make(map[string]bool, len(opts.SkipGameIDs))
	for _, id := range opts.SkipGameIDs {
		skip[id] = true
	}

	logger := g.log.With().Str("season", season.ID).Logger()
	logger.Info().
		Int("teams", len(teams)).
		Int("fields", len(priority)).
		Int("rounds", len(rounds)).
		Int("existing_games", len(existing)).
		Int("skipped_games", len(skip)).
		Msg("Generating season schedule")

	result := &Result{
		Outcome:     OutcomeCompleted,
		RoundDates:  dates,
		TeamMetrics: make(map[string]*TeamMetrics, len(teams)),
	}
	for _, t := range teams {
		result.TeamMetrics[t.ID] = &TeamMetrics{}
	}

	for ri, round := range rounds {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("round", ri+1).Msg("Schedule generation cancelled")
			result.Outcome = OutcomeCancelled
			break
		}
		date := dates[ri]
		logger.Debug().Int("round", ri+1).Str("date", date.Format(domain.DateLayout)).Msg("Placing round")

		for _, p := range round {
			if id := gameID(season.ID, p); skip[id] {
				logger.Debug().Str("game", id).Msg("Pairing already on the books")
				continue
			}
			game, unplaced := run.place(p, date)
			if unplaced != nil {
				logger.Debug().
					Str("home", p.Home.ID).
					Str("away", p.Away.ID).
					Str("reason", string(unplaced.Reason)).
					Msg("Pairing not placed")
				result.Unplaced = append(result.Unplaced, *unplaced)
				result.TeamMetrics[p.Home.ID].Unplaced++
				result.TeamMetrics[p.Away.ID].Unplaced++
				continue
			}
			result.Placed = append(result.Placed, game)
			home := result.TeamMetrics[p.Home.ID]
			home.Games++
			home.Home++
			away := result.TeamMetrics[p.Away.ID]
			away.Games++
			away.Away++
		}
	}

	logger.Info().
		Int("placed", len(result.Placed)).
		Int("unplaced", len(result.Unplaced)).
		Str("outcome", string(result.Outcome)).
		Msg("Season schedule generated")
	return result, nil
}

func fieldPriority(idx *availability.Index, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return idx.FieldIDs(), nil
	}
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if _, ok := idx.Field(id); !ok {
			return nil, domain.Invalid("field priority", "unknown field %q", id)
		}
		if seen[id] {
			return nil, domain.Invalid("field priority", "field %q listed twice", id)
		}
		seen[id] = true
	}
	return append([]string(nil), requested...), nil
}

// run is the mutable state of one Generate call.
type run struct {
	season   domain.Season
	duration time.Duration
	priority []string
	games    *conflict.Index
	detector conflict.Detector
	finder   slots.Finder
}

func (r *run) place(p strategy.Pairing, date time.Time) (domain.Game, *Unplaced) {
	candidate := conflict.Candidate{
		Date:       date,
		Duration:   r.duration,
		HomeTeamID: p.Home.ID,
		AwayTeamID: p.Away.ID,
	}

	tried := 0
	teamConflict := false
	var last conflict.Report
	for slot := range r.finder.Candidates(date, r.duration, r.priority) {
		tried++
		candidate.FieldID = slot.FieldID
		candidate.Start = slot.Start
		report := r.detector.Check(candidate, "")
		if report.OK() {
			game := domain.Game{
				ID:         gameID(r.season.ID, p),
				SeasonID:   r.season.ID,
				Round:      p.Round,
				Date:       date,
				Start:      slot.Start,
				Duration:   r.duration,
				HomeTeamID: p.Home.ID,
				AwayTeamID: p.Away.ID,
				FieldID:    slot.FieldID,
				Status:     domain.StatusScheduled,
			}
			r.games.Add(game)
			return game, nil
		}
		if report.Has(conflict.KindTeamBooked) {
			teamConflict = true
		}
		last = report
	}

	unplaced := &Unplaced{Pairing: p, Date: date, Reason: ReasonNoFreeSlot}
	if teamConflict {
		unplaced.Reason = ReasonTeamConflict
	}
	if tried == 0 {
		unplaced.Detail = fmt.Sprintf("no free %s slot on %s (%s) at %s",
			r.duration, date.Format(domain.DateLayout), date.Weekday(), strings.Join(r.priority, ", "))
	} else {
		unplaced.Detail = fmt.Sprintf("%d candidate slots rejected; last: %s", tried, last)
	}
	return domain.Game{}, unplaced
}

func gameID(seasonID string, p strategy.Pairing) string {
	name := fmt.Sprintf("%s/%d/%d/%s/%s", seasonID, p.Round, p.Leg, p.Home.ID, p.Away.ID)
	return uuid.NewSHA1(gameNamespace, []byte(name)).String()
}
