package league

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/derekprior/leaguesched/internal/config"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/schedule"
	"github.com/derekprior/leaguesched/internal/store"
	"github.com/derekprior/leaguesched/internal/testutil"
)

var monday = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)

const leagueYAML = `
fields:
  - id: north
    availability:
      - day: monday
        open: "17:00"
        close: "23:00"
    usage_blocks:
      - day: monday
        kind: PRACTICE
        start: "17:00"
        end: "18:00"
  - id: south
    availability:
      - day: monday
        open: "17:00"
        close: "23:00"

seasons:
  - id: spring
    name: Spring
    start_date: "2026-04-06"
    end_date: "2026-06-29"
    game_duration: 90m
    teams: [Hawks, Owls, Ravens, Wrens]

existing_games:
  - id: tourney
    season: summer
    date: "2026-04-06"
    start: "18:00"
    duration: 2h
    home: Bears
    away: Wolves
    field: south
`

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(leagueYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes() error: %v", err)
	}
	st := testutil.NewTestStore(t)
	svc := NewService(st, zerolog.Nop())
	if err := svc.Import(context.Background(), cfg); err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	return svc, st
}

func candidate(field string, h, m int, home, away string) conflict.Candidate {
	return conflict.Candidate{
		FieldID: field, Date: monday, Start: domain.NewTimeOfDay(h, m),
		Duration: 90 * time.Minute, HomeTeamID: home, AwayTeamID: away,
	}
}

func TestImport(t *testing.T) {
	_, st := newService(t)
	ctx := context.Background()

	fields, err := st.Fields(ctx)
	if err != nil || len(fields) != 2 {
		t.Fatalf("Fields() = %d, %v", len(fields), err)
	}
	teams, _ := st.Teams(ctx, "spring")
	if len(teams) != 4 {
		t.Errorf("teams = %d, want 4", len(teams))
	}
	g, err := st.Game(ctx, "tourney")
	if err != nil {
		t.Fatalf("Game() error: %v", err)
	}
	if g.SeasonID != "" {
		t.Errorf("season = %q, want unconfigured season dropped", g.SeasonID)
	}
}

func TestImportTwice(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	moved := strings.Replace(leagueYAML, `start: "18:00"`, `start: "20:00"`, 1)
	cfg, err := config.LoadFromBytes([]byte(moved))
	if err != nil {
		t.Fatalf("LoadFromBytes() error: %v", err)
	}
	if err := svc.Import(ctx, cfg); err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	g, err := st.Game(ctx, "tourney")
	if err != nil {
		t.Fatalf("Game() error: %v", err)
	}
	if g.Start != domain.NewTimeOfDay(20, 0) {
		t.Errorf("start = %s, want the re-imported 20:00", g.Start)
	}
	games, _ := st.Games(ctx)
	if len(games) != 1 {
		t.Errorf("games = %d, want 1", len(games))
	}
}

func TestValidateGame(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("free slot", func(t *testing.T) {
		report, err := svc.ValidateGame(ctx, candidate("north", 18, 0, "Hawks", "Owls"), "")
		if err != nil {
			t.Fatal(err)
		}
		if !report.OK() {
			t.Errorf("report = %s, want none", report)
		}
	})

	t.Run("practice block and booked field", func(t *testing.T) {
		report, _ := svc.ValidateGame(ctx, candidate("north", 17, 0, "Hawks", "Owls"), "")
		if !report.Has(conflict.KindAvailability) {
			t.Errorf("report = %s, want availability conflict", report)
		}
		report, _ = svc.ValidateGame(ctx, candidate("south", 19, 0, "Hawks", "Owls"), "")
		if !report.Has(conflict.KindFieldBooked) {
			t.Errorf("report = %s, want field conflict", report)
		}
	})
}

func TestCreateAndUpdateGame(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	g, err := svc.CreateGame(ctx, "spring", candidate("north", 18, 0, "Hawks", "Owls"))
	if err != nil {
		t.Fatalf("CreateGame() error: %v", err)
	}
	if g.ID == "" || g.Status != domain.StatusScheduled {
		t.Errorf("game = %+v", g)
	}

	t.Run("double booking is rejected with every conflict", func(t *testing.T) {
		_, err := svc.CreateGame(ctx, "spring", candidate("north", 19, 0, "Hawks", "Owls"))
		var cerr *ConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("err = %v, want ConflictError", err)
		}
		if !cerr.Report.Has(conflict.KindFieldBooked) || !cerr.Report.Has(conflict.KindTeamBooked) {
			t.Errorf("report = %s", cerr.Report)
		}
		var teams int
		for _, c := range cerr.Report.Conflicts {
			if c.Kind == conflict.KindTeamBooked {
				teams++
			}
		}
		if teams != 2 {
			t.Errorf("team conflicts = %d, want 2", teams)
		}
	})

	t.Run("unknown season", func(t *testing.T) {
		if _, err := svc.CreateGame(ctx, "fall", candidate("north", 20, 0, "Ravens", "Wrens")); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("moving a game does not collide with itself", func(t *testing.T) {
		g.Start = domain.NewTimeOfDay(18, 30)
		if err := svc.UpdateGame(ctx, g); err != nil {
			t.Fatalf("UpdateGame() error: %v", err)
		}
		got, _ := st.Game(ctx, g.ID)
		if got.Start != domain.NewTimeOfDay(18, 30) {
			t.Errorf("start = %s, want 18:30", got.Start)
		}
	})

	t.Run("moving into an occupied slot fails", func(t *testing.T) {
		moved := g
		moved.FieldID = "south"
		moved.Start = domain.NewTimeOfDay(18, 0)
		var cerr *ConflictError
		if err := svc.UpdateGame(ctx, moved); !errors.As(err, &cerr) {
			t.Errorf("err = %v, want ConflictError", err)
		}
	})

	t.Run("cancelling frees the slot", func(t *testing.T) {
		g.Status = domain.StatusCancelled
		if err := svc.UpdateGame(ctx, g); err != nil {
			t.Fatalf("UpdateGame() error: %v", err)
		}
		report, _ := svc.ValidateGame(ctx, candidate("north", 18, 30, "Hawks", "Owls"), "")
		if !report.OK() {
			t.Errorf("report = %s, want none after cancel", report)
		}
	})
}

var packed = schedule.Options{PackFields: true}

func TestGenerateSeason(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	result, err := svc.GenerateSeason(ctx, "spring", packed)
	if err != nil {
		t.Fatalf("GenerateSeason() error: %v", err)
	}
	if len(result.Placed) != 6 || len(result.Unplaced) != 0 {
		t.Fatalf("placed %d, unplaced %d; want 6 and 0", len(result.Placed), len(result.Unplaced))
	}
	stored, _ := st.SeasonGames(ctx, "spring")
	if len(stored) != 6 {
		t.Errorf("stored = %d, want 6", len(stored))
	}

	t.Run("regenerating is idempotent", func(t *testing.T) {
		if _, err := svc.GenerateSeason(ctx, "spring", packed); err != nil {
			t.Fatalf("GenerateSeason() error: %v", err)
		}
		again, _ := st.SeasonGames(ctx, "spring")
		if len(again) != len(stored) {
			t.Fatalf("games = %d, want %d", len(again), len(stored))
		}
		for i := range again {
			if again[i] != stored[i] {
				t.Errorf("game %d changed: %+v vs %+v", i, again[i], stored[i])
			}
		}
	})

	t.Run("completed games are kept and not replayed", func(t *testing.T) {
		done := stored[0]
		done.Status = domain.StatusCompleted
		if err := st.UpdateGame(ctx, done); err != nil {
			t.Fatal(err)
		}
		again, err := svc.GenerateSeason(ctx, "spring", packed)
		if err != nil {
			t.Fatalf("GenerateSeason() error: %v", err)
		}
		if len(again.Placed) != 5 {
			t.Errorf("placed = %d, want 5", len(again.Placed))
		}
		for _, g := range again.Placed {
			if g.ID == done.ID {
				t.Errorf("completed game placed again at %s", g.Start)
			}
		}
		games, _ := st.SeasonGames(ctx, "spring")
		completed := 0
		for _, g := range games {
			if g.Status == domain.StatusCompleted {
				completed++
			}
		}
		if completed != 1 {
			t.Errorf("completed = %d, want 1", completed)
		}
		if len(games) != 6 {
			t.Errorf("games = %d, want 6", len(games))
		}
	})

	t.Run("capacity error writes nothing", func(t *testing.T) {
		if err := st.SaveSeason(ctx, domain.Season{
			ID: "short", Name: "Short", StartDate: monday, EndDate: monday, GameDuration: time.Hour,
		}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveTeams(ctx, "short", []domain.Team{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}, {ID: "C", Name: "C"}}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.GenerateSeason(ctx, "short", schedule.Options{}); !errors.Is(err, domain.ErrCapacity) {
			t.Errorf("err = %v, want ErrCapacity", err)
		}
		games, _ := st.SeasonGames(ctx, "short")
		if len(games) != 0 {
			t.Errorf("games = %d, want 0", len(games))
		}
	})
}

const oneFieldYAML = `
fields:
  - id: only
    availability:
      - day: monday
        open: "18:00"
        close: "21:00"

seasons:
  - id: spring
    name: Spring
    start_date: "2026-04-06"
    end_date: "2026-06-29"
    game_duration: 90m
    teams: [A, B, C, D]
`

func TestGenerateSeasonAroundPlayedGames(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(oneFieldYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes() error: %v", err)
	}
	st := testutil.NewTestStore(t)
	svc := NewService(st, zerolog.Nop())
	ctx := context.Background()
	if err := svc.Import(ctx, cfg); err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	first, err := svc.GenerateSeason(ctx, "spring", packed)
	if err != nil {
		t.Fatalf("GenerateSeason() error: %v", err)
	}
	if len(first.Placed) != 6 || len(first.Unplaced) != 0 {
		t.Fatalf("placed %d, unplaced %d; want 6 and 0", len(first.Placed), len(first.Unplaced))
	}

	// The first game of round one goes at 18:00; the other fits at 19:30.
	done := first.Placed[0]
	if done.Start != domain.NewTimeOfDay(18, 0) {
		t.Fatalf("first game at %s, want 18:00", done.Start)
	}
	done.Status = domain.StatusCompleted
	if err := st.UpdateGame(ctx, done); err != nil {
		t.Fatal(err)
	}

	second, err := svc.GenerateSeason(ctx, "spring", packed)
	if err != nil {
		t.Fatalf("GenerateSeason() error: %v", err)
	}
	if len(second.Unplaced) != 0 {
		t.Errorf("unplaced = %+v, want none", second.Unplaced)
	}
	if len(second.Placed) != 5 {
		t.Errorf("placed = %d, want 5", len(second.Placed))
	}
	for _, g := range second.Placed {
		if g.ID == done.ID {
			t.Errorf("completed game reported again at %s", g.Start)
		}
	}

	stored, err := st.Game(ctx, done.ID)
	if err != nil {
		t.Fatalf("Game() error: %v", err)
	}
	if stored.Status != domain.StatusCompleted || stored.Start != domain.NewTimeOfDay(18, 0) {
		t.Errorf("completed game = %s at %s", stored.Status, stored.Start)
	}
	games, _ := st.SeasonGames(ctx, "spring")
	if len(games) != 6 {
		t.Errorf("games = %d, want 6", len(games))
	}
}
