// Package league runs the scheduling engine against persisted league state.
package league

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/config"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/schedule"
	"github.com/derekprior/leaguesched/internal/store"
)

// ConflictError rejects a game write whose candidate has conflicts. Report
// holds all of them.
type ConflictError struct {
	Report conflict.Report
}

func (e *ConflictError) Error() string {
	return "game conflicts: " + e.Report.String()
}

type Service struct {
	store     *store.Store
	generator *schedule.Generator
	log       zerolog.Logger
}

func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		generator: schedule.NewGenerator(logger),
		log:       logger,
	}
}

// Import writes the configured fields, seasons, teams and existing games.
// Existing games whose season is not configured are stored without one.
func (s *Service) Import(ctx context.Context, cfg *config.Config) error {
	return s.store.RunInTx(ctx, func(tx *store.Store) error {
		for _, f := range cfg.DomainFields() {
			if err := tx.SaveField(ctx, f); err != nil {
				return err
			}
		}
		seasons := make(map[string]bool, len(cfg.Seasons))
		for i := range cfg.Seasons {
			season := &cfg.Seasons[i]
			if err := tx.SaveSeason(ctx, season.Domain()); err != nil {
				return err
			}
			if err := tx.SaveTeams(ctx, season.ID, season.DomainTeams()); err != nil {
				return err
			}
			seasons[season.ID] = true
		}
		for _, g := range cfg.Games() {
			if !seasons[g.SeasonID] {
				g.SeasonID = ""
			}
			_, err := tx.Game(ctx, g.ID)
			switch {
			case err == nil:
				err = tx.UpdateGame(ctx, g)
			case errors.Is(err, store.ErrNotFound):
				err = tx.InsertGame(ctx, g)
			}
			if err != nil {
				return fmt.Errorf("importing game %q: %w", g.ID, err)
			}
		}
		s.log.Info().
			Int("fields", len(cfg.Fields)).
			Int("seasons", len(cfg.Seasons)).
			Int("existing_games", len(cfg.ExistingGames)).
			Msg("Imported league config")
		return nil
	})
}

func (s *Service) detector(ctx context.Context) (conflict.Detector, error) {
	fields, err := s.store.Fields(ctx)
	if err != nil {
		return conflict.Detector{}, err
	}
	idx, err := availability.NewIndex(fields)
	if err != nil {
		return conflict.Detector{}, err
	}
	games, err := s.store.Games(ctx)
	if err != nil {
		return conflict.Detector{}, err
	}
	return conflict.Detector{Availability: idx, Games: conflict.NewIndex(games)}, nil
}

// ValidateGame checks a candidate against the stored fields and games.
// ignoreID excludes a game's stored copy when re-validating an edit.
func (s *Service) ValidateGame(ctx context.Context, c conflict.Candidate, ignoreID string) (conflict.Report, error) {
	d, err := s.detector(ctx)
	if err != nil {
		return conflict.Report{}, err
	}
	return d.Check(c, ignoreID), nil
}

// CreateGame stores a manual game after validating it. The game gets a new
// random id; it is returned with the id set.
func (s *Service) CreateGame(ctx context.Context, seasonID string, c conflict.Candidate) (domain.Game, error) {
	if _, err := s.store.Season(ctx, seasonID); err != nil {
		return domain.Game{}, err
	}
	report, err := s.ValidateGame(ctx, c, "")
	if err != nil {
		return domain.Game{}, err
	}
	if !report.OK() {
		return domain.Game{}, &ConflictError{Report: report}
	}

	g := domain.Game{
		ID:         uuid.NewString(),
		SeasonID:   seasonID,
		Date:       domain.Day(c.Date),
		Start:      c.Start,
		Duration:   c.Duration,
		HomeTeamID: c.HomeTeamID,
		AwayTeamID: c.AwayTeamID,
		FieldID:    c.FieldID,
		Status:     domain.StatusScheduled,
	}
	if err := s.store.InsertGame(ctx, g); err != nil {
		return domain.Game{}, err
	}
	s.log.Info().Str("game", g.ID).Str("season", seasonID).Msg("Game created")
	return g, nil
}

// UpdateGame re-validates an edited game, ignoring its own stored copy.
// Cancelled games are stored without validation since they hold nothing.
func (s *Service) UpdateGame(ctx context.Context, g domain.Game) error {
	if _, err := s.store.Game(ctx, g.ID); err != nil {
		return err
	}
	if g.Status.Occupies() {
		report, err := s.ValidateGame(ctx, conflict.FromGame(g), g.ID)
		if err != nil {
			return err
		}
		if !report.OK() {
			return &ConflictError{Report: report}
		}
	}
	if err := s.store.UpdateGame(ctx, g); err != nil {
		return err
	}
	s.log.Info().Str("game", g.ID).Str("status", string(g.Status)).Msg("Game updated")
	return nil
}

// GenerateSeason regenerates the season's SCHEDULED games against a
// snapshot of everything else and commits the result. Games of the season in
// any other status stay and are worked around; pairings they already cover
// are not placed again. A concurrent write since the snapshot fails the
// commit with domain.ErrStaleSnapshot; nothing is written and the caller may
// retry.
func (s *Service) GenerateSeason(ctx context.Context, seasonID string, opts schedule.Options) (*schedule.Result, error) {
	season, err := s.store.Season(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.Teams(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.Fields(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	existing := make([]domain.Game, 0, len(snap.Games))
	opts.SkipGameIDs = append([]string(nil), opts.SkipGameIDs...)
	for _, g := range snap.Games {
		if g.SeasonID == seasonID && g.Status == domain.StatusScheduled {
			continue
		}
		if g.SeasonID == seasonID {
			opts.SkipGameIDs = append(opts.SkipGameIDs, g.ID)
		}
		existing = append(existing, g)
	}

	start := time.Now()
	result, err := s.generator.Generate(ctx, season, teams, fields, existing, opts)
	if err != nil {
		return nil, err
	}
	if result.Outcome == schedule.OutcomeCancelled {
		return result, nil
	}

	if err := s.store.CommitSchedule(ctx, snap.Revision, seasonID, result.Placed); err != nil {
		return nil, fmt.Errorf("committing season %q: %w", seasonID, err)
	}

	s.log.Info().
		Str("season", seasonID).
		Int("committed", len(result.Placed)).
		Dur("elapsed", time.Since(start)).
		Msg("Season schedule committed")
	return result, nil
}
