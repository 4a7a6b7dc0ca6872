package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

// SaveField inserts or replaces a field together with its windows and
// usage blocks. Replacing keeps the field's position in Fields.
func (s *Store) SaveField(ctx context.Context, f domain.Field) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO fields (id, name, location) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, location = excluded.location`,
			f.ID, f.Name, f.Location)
		if err != nil {
			return fmt.Errorf("saving field %q: %w", f.ID, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM availability_windows WHERE field_id = ?`, f.ID); err != nil {
			return fmt.Errorf("clearing windows for %q: %w", f.ID, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM usage_blocks WHERE field_id = ?`, f.ID); err != nil {
			return fmt.Errorf("clearing usage blocks for %q: %w", f.ID, err)
		}
		for _, w := range f.Windows {
			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO availability_windows (field_id, day, open_minute, close_minute)
				VALUES (?, ?, ?, ?)`,
				f.ID, int(w.Day), int(w.Open), int(w.Close))
			if err != nil {
				return fmt.Errorf("saving window for %q: %w", f.ID, err)
			}
		}
		for _, b := range f.Blocks {
			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO usage_blocks (field_id, day, kind, start_minute, end_minute, note)
				VALUES (?, ?, ?, ?, ?, ?)`,
				f.ID, int(b.Day), string(b.Kind), int(b.Start), int(b.End), b.Note)
			if err != nil {
				return fmt.Errorf("saving usage block for %q: %w", f.ID, err)
			}
		}
		return nil
	})
}

// Fields returns every field in the order first saved.
func (s *Store) Fields(ctx context.Context) ([]domain.Field, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, location FROM fields ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}
	var fields []domain.Field
	for rows.Next() {
		var f domain.Field
		if err := rows.Scan(&f.ID, &f.Name, &f.Location); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range fields {
		if err := s.loadFieldDetail(ctx, &fields[i]); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// Field returns one field with its windows and blocks.
func (s *Store) Field(ctx context.Context, id string) (domain.Field, error) {
	f := domain.Field{ID: id}
	err := s.q.QueryRowContext(ctx, `SELECT name, location FROM fields WHERE id = ?`, id).Scan(&f.Name, &f.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Field{}, fmt.Errorf("field %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Field{}, fmt.Errorf("loading field %q: %w", id, err)
	}
	if err := s.loadFieldDetail(ctx, &f); err != nil {
		return domain.Field{}, err
	}
	return f, nil
}

func (s *Store) loadFieldDetail(ctx context.Context, f *domain.Field) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT day, open_minute, close_minute FROM availability_windows
		WHERE field_id = ? ORDER BY id`, f.ID)
	if err != nil {
		return fmt.Errorf("loading windows for %q: %w", f.ID, err)
	}
	for rows.Next() {
		var day, open, close int
		if err := rows.Scan(&day, &open, &close); err != nil {
			rows.Close()
			return fmt.Errorf("scanning window: %w", err)
		}
		f.Windows = append(f.Windows, domain.AvailabilityWindow{
			FieldID: f.ID,
			Day:     time.Weekday(day),
			Open:    domain.TimeOfDay(open),
			Close:   domain.TimeOfDay(close),
		})
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = s.q.QueryContext(ctx, `
		SELECT day, kind, start_minute, end_minute, note FROM usage_blocks
		WHERE field_id = ? ORDER BY id`, f.ID)
	if err != nil {
		return fmt.Errorf("loading usage blocks for %q: %w", f.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, start, end int
		var kind, note string
		if err := rows.Scan(&day, &kind, &start, &end, &note); err != nil {
			return fmt.Errorf("scanning usage block: %w", err)
		}
		f.Blocks = append(f.Blocks, domain.UsageBlock{
			FieldID: f.ID,
			Day:     time.Weekday(day),
			Kind:    domain.UsageKind(kind),
			Start:   domain.TimeOfDay(start),
			End:     domain.TimeOfDay(end),
			Note:    note,
		})
	}
	return rows.Err()
}

func (s *Store) SaveSeason(ctx context.Context, season domain.Season) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO seasons (id, name, start_date, end_date, game_duration_minutes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			game_duration_minutes = excluded.game_duration_minutes`,
		season.ID, season.Name,
		season.StartDate.Format(domain.DateLayout), season.EndDate.Format(domain.DateLayout),
		int(season.GameDuration/time.Minute))
	if err != nil {
		return fmt.Errorf("saving season %q: %w", season.ID, err)
	}
	return nil
}

func (s *Store) Season(ctx context.Context, id string) (domain.Season, error) {
	season := domain.Season{ID: id}
	var start, end string
	var minutes int
	err := s.q.QueryRowContext(ctx, `
		SELECT name, start_date, end_date, game_duration_minutes FROM seasons WHERE id = ?`, id).
		Scan(&season.Name, &start, &end, &minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Season{}, fmt.Errorf("season %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Season{}, fmt.Errorf("loading season %q: %w", id, err)
	}
	if season.StartDate, err = time.Parse(domain.DateLayout, start); err != nil {
		return domain.Season{}, fmt.Errorf("season %q start date: %w", id, err)
	}
	if season.EndDate, err = time.Parse(domain.DateLayout, end); err != nil {
		return domain.Season{}, fmt.Errorf("season %q end date: %w", id, err)
	}
	season.GameDuration = time.Duration(minutes) * time.Minute
	return season, nil
}

// DeleteSeason removes a season; its teams and games go with it.
func (s *Store) DeleteSeason(ctx context.Context, id string) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM seasons WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting season %q: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("season %q: %w", id, ErrNotFound)
		}
		return tx.bumpRevision(ctx)
	})
}

// SaveTeams replaces the season's team list, keeping the given order.
func (s *Store) SaveTeams(ctx context.Context, seasonID string, teams []domain.Team) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM teams WHERE season_id = ?`, seasonID); err != nil {
			return fmt.Errorf("clearing teams for %q: %w", seasonID, err)
		}
		for i, t := range teams {
			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO teams (season_id, id, name, position) VALUES (?, ?, ?, ?)`,
				seasonID, t.ID, t.Name, i)
			if err != nil {
				return fmt.Errorf("saving team %q: %w", t.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) Teams(ctx context.Context, seasonID string) ([]domain.Team, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name FROM teams WHERE season_id = ? ORDER BY position`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing teams for %q: %w", seasonID, err)
	}
	defer rows.Close()
	var teams []domain.Team
	for rows.Next() {
		t := domain.Team{SeasonID: seasonID}
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
