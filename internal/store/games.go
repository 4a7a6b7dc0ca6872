package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

const gameColumns = `id, COALESCE(season_id, ''), round, date, start_minute, duration_minutes,
	home_team_id, away_team_id, COALESCE(field_id, ''), status`

// Snapshot is a consistent read of every game and the revision it was taken
// at. Pass Revision to CommitSchedule to detect concurrent writes.
type Snapshot struct {
	Revision int64
	Games    []domain.Game
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (domain.Game, error) {
	var g domain.Game
	var date, status string
	var start, minutes int
	if err := row.Scan(&g.ID, &g.SeasonID, &g.Round, &date, &start, &minutes,
		&g.HomeTeamID, &g.AwayTeamID, &g.FieldID, &status); err != nil {
		return domain.Game{}, err
	}
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return domain.Game{}, fmt.Errorf("game %s date: %w", g.ID, err)
	}
	g.Date = d
	g.Start = domain.TimeOfDay(start)
	g.Duration = time.Duration(minutes) * time.Minute
	g.Status = domain.GameStatus(status)
	return g, nil
}

func (s *Store) queryGames(ctx context.Context, where string, args ...any) ([]domain.Game, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+gameColumns+` FROM games `+where+
		` ORDER BY date, start_minute, COALESCE(field_id, ''), id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()
	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Games returns every stored game ordered by date, start and field.
func (s *Store) Games(ctx context.Context) ([]domain.Game, error) {
	return s.queryGames(ctx, "")
}

func (s *Store) SeasonGames(ctx context.Context, seasonID string) ([]domain.Game, error) {
	return s.queryGames(ctx, "WHERE season_id = ?", seasonID)
}

func (s *Store) Game(ctx context.Context, id string) (domain.Game, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Game{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("loading game %s: %w", id, err)
	}
	return g, nil
}

// Snapshot reads the revision and all games in one transaction.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.RunInTx(ctx, func(tx *Store) error {
		rev, err := tx.Revision(ctx)
		if err != nil {
			return err
		}
		games, err := tx.Games(ctx)
		if err != nil {
			return err
		}
		snap = Snapshot{Revision: rev, Games: games}
		return nil
	})
	return snap, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) insertGame(ctx context.Context, g domain.Game) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO games (id, season_id, round, date, start_minute, duration_minutes,
			home_team_id, away_team_id, field_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, nullable(g.SeasonID), g.Round, g.Date.Format(domain.DateLayout), int(g.Start),
		int(g.Duration/time.Minute), g.HomeTeamID, g.AwayTeamID, nullable(g.FieldID), string(g.Status))
	if err != nil {
		return fmt.Errorf("inserting game %s: %w", g.ID, err)
	}
	return nil
}

// InsertGame stores a new game and bumps the revision.
func (s *Store) InsertGame(ctx context.Context, g domain.Game) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		if err := tx.insertGame(ctx, g); err != nil {
			return err
		}
		return tx.bumpRevision(ctx)
	})
}

// UpdateGame overwrites an existing game and bumps the revision.
func (s *Store) UpdateGame(ctx context.Context, g domain.Game) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `
			UPDATE games SET season_id = ?, round = ?, date = ?, start_minute = ?,
				duration_minutes = ?, home_team_id = ?, away_team_id = ?, field_id = ?, status = ?
			WHERE id = ?`,
			nullable(g.SeasonID), g.Round, g.Date.Format(domain.DateLayout), int(g.Start),
			int(g.Duration/time.Minute), g.HomeTeamID, g.AwayTeamID, nullable(g.FieldID),
			string(g.Status), g.ID)
		if err != nil {
			return fmt.Errorf("updating game %s: %w", g.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("game %s: %w", g.ID, ErrNotFound)
		}
		return tx.bumpRevision(ctx)
	})
}

// CommitSchedule replaces the season's SCHEDULED games with games, but only
// if nothing was written since the snapshot at revision. Games in any other
// status are kept. A mismatch returns domain.ErrStaleSnapshot and writes
// nothing.
func (s *Store) CommitSchedule(ctx context.Context, revision int64, seasonID string, games []domain.Game) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		current, err := tx.Revision(ctx)
		if err != nil {
			return err
		}
		if current != revision {
			return fmt.Errorf("%w: snapshot at revision %d, store at %d", domain.ErrStaleSnapshot, revision, current)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM games WHERE season_id = ? AND status = ?`,
			seasonID, string(domain.StatusScheduled)); err != nil {
			return fmt.Errorf("clearing scheduled games for %q: %w", seasonID, err)
		}
		for _, g := range games {
			if g.SeasonID != seasonID {
				return domain.Invalid("game", "game %s belongs to season %q, not %q", g.ID, g.SeasonID, seasonID)
			}
			if err := tx.insertGame(ctx, g); err != nil {
				return err
			}
		}
		return tx.bumpRevision(ctx)
	})
}
