package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

const testConfigYAML = `
fields:
  - id: north
    name: North Diamond
    location: Riverside Park
    availability:
      - day: monday
        open: "17:00"
        close: "22:00"
      - day: sat
        open: "9:00 AM"
        close: "2:00 PM"
    usage_blocks:
      - day: monday
        kind: practice
        start: "17:00"
        end: "18:00"
        note: U10 practice
  - id: south
    availability:
      - day: monday
        open: "17:00"
        close: "22:00"

seasons:
  - id: spring-2026
    name: Spring 2026
    start_date: "2026-04-06"
    end_date: "2026-06-29"
    game_duration: 90m
    teams: [Hawks, Owls, Ravens, Wrens]
    blackout_dates:
      - date: "2026-05-25"
        reason: Memorial Day
    options:
      double_round_robin: true
      cadence_days: 7
      preferred_day: monday
      field_priority: [south, north]
      pack_fields: true

existing_games:
  - id: tourney-1
    season: summer-2026
    date: "2026-04-13"
    start: "18:00"
    duration: 120
    home: Bears
    away: Wolves
    field: north
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("fields", func(t *testing.T) {
		fields := cfg.DomainFields()
		if len(fields) != 2 {
			t.Fatalf("fields = %d, want 2", len(fields))
		}
		north := fields[0]
		if north.ID != "north" || north.Location != "Riverside Park" {
			t.Errorf("north = %+v", north)
		}
		if len(north.Windows) != 2 {
			t.Fatalf("windows = %d, want 2", len(north.Windows))
		}
		sat := north.Windows[1]
		if sat.Day != time.Saturday || sat.Open != domain.NewTimeOfDay(9, 0) || sat.Close != domain.NewTimeOfDay(14, 0) {
			t.Errorf("saturday window = %+v", sat)
		}
		if len(north.Blocks) != 1 || north.Blocks[0].Kind != domain.UsagePractice {
			t.Errorf("blocks = %+v, want one PRACTICE block", north.Blocks)
		}
		if fields[1].Name != "south" {
			t.Errorf("south name = %q, want the id as fallback", fields[1].Name)
		}
	})

	t.Run("season", func(t *testing.T) {
		s, ok := cfg.Season("spring-2026")
		if !ok {
			t.Fatal("season not found")
		}
		ds := s.Domain()
		if ds.StartDate != mustDate("2026-04-06") || ds.EndDate != mustDate("2026-06-29") {
			t.Errorf("season dates = %v..%v", ds.StartDate, ds.EndDate)
		}
		if ds.GameDuration != 90*time.Minute {
			t.Errorf("game duration = %s, want 1h30m", ds.GameDuration)
		}
		teams := s.DomainTeams()
		if len(teams) != 4 || teams[0].ID != "Hawks" || teams[0].SeasonID != "spring-2026" {
			t.Errorf("teams = %+v", teams)
		}
	})

	t.Run("schedule options", func(t *testing.T) {
		s, _ := cfg.Season("spring-2026")
		opts := s.ScheduleOptions()
		if !opts.DoubleRoundRobin || opts.CadenceDays != 7 || !opts.PackFields {
			t.Errorf("opts = %+v", opts)
		}
		if opts.PreferredDay == nil || *opts.PreferredDay != time.Monday {
			t.Errorf("preferred day = %v, want Monday", opts.PreferredDay)
		}
		if len(opts.FieldPriority) != 2 || opts.FieldPriority[0] != "south" {
			t.Errorf("field priority = %v", opts.FieldPriority)
		}
		if len(opts.BlackoutDates) != 1 || opts.BlackoutDates[0] != mustDate("2026-05-25") {
			t.Errorf("blackouts = %v", opts.BlackoutDates)
		}
	})

	t.Run("existing games", func(t *testing.T) {
		games := cfg.Games()
		if len(games) != 1 {
			t.Fatalf("games = %d, want 1", len(games))
		}
		g := games[0]
		if g.Duration != 2*time.Hour {
			t.Errorf("duration = %s, want 2h", g.Duration)
		}
		if g.Status != domain.StatusScheduled {
			t.Errorf("status = %s, want SCHEDULED", g.Status)
		}
		if g.Start != domain.NewTimeOfDay(18, 0) || g.FieldID != "north" {
			t.Errorf("game = %+v", g)
		}
	})

	t.Run("unknown season", func(t *testing.T) {
		if _, ok := cfg.Season("fall"); ok {
			t.Error("expected no season")
		}
	})
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"end before start", `end_date: "2026-06-29"`, `end_date: "2026-03-01"`, "before start date"},
		{"duplicate team", `[Hawks, Owls, Ravens, Wrens]`, `[Hawks, Owls, Hawks]`, "twice"},
		{"single team", `[Hawks, Owls, Ravens, Wrens]`, `[Hawks]`, "at least two teams"},
		{"unknown priority field", `[south, north]`, `[south, east]`, "unknown field"},
		{"bad usage kind", `kind: practice`, `kind: scrimmage`, "usage kind"},
		{"closing before opening", `close: "2:00 PM"`, `close: "8:00 AM"`, "invalid"},
		{"bad time", `start: "18:00"`, `start: "six"`, "HH:MM"},
		{"bad weekday", `day: sat`, `day: caturday`, "day of week"},
		{"unknown game field", `    field: north`, `    field: east`, "unknown field"},
		{"missing duration", `game_duration: 90m`, `game_duration: 0m`, "game_duration"},
		{"bad status", `    field: north`, "    field: north\n    status: abandoned", "game status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := strings.Replace(testConfigYAML, tt.old, tt.new, 1)
			if yaml == testConfigYAML {
				t.Fatalf("replacement %q not found", tt.old)
			}
			_, err := LoadFromBytes([]byte(yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	t.Run("overlapping windows", func(t *testing.T) {
		yaml := strings.Replace(testConfigYAML, `      - day: sat`, `      - day: monday
        open: "21:00"
        close: "23:00"
      - day: sat`, 1)
		if _, err := LoadFromBytes([]byte(yaml)); err == nil {
			t.Error("expected error for overlapping windows")
		}
	})

	t.Run("no fields", func(t *testing.T) {
		if _, err := LoadFromBytes([]byte("seasons: []\n")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "league.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "league.yaml")

	t.Run("without .env", func(t *testing.T) {
		t.Setenv("LEAGUESCHED_DB", "")
		t.Setenv("LEAGUESCHED_LOG_LEVEL", "warn")
		env, err := LoadEnv(path)
		if err != nil {
			t.Fatalf("LoadEnv() error: %v", err)
		}
		if env.LogLevel != "warn" || env.DBPath != "" {
			t.Errorf("env = %+v", env)
		}
	})

	t.Run("process environment wins over .env", func(t *testing.T) {
		contents := "LEAGUESCHED_DB=league.db\nLEAGUESCHED_LOG_LEVEL=debug\n"
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("LEAGUESCHED_DB", "")
		os.Unsetenv("LEAGUESCHED_DB")
		t.Setenv("LEAGUESCHED_LOG_LEVEL", "error")
		env, err := LoadEnv(path)
		if err != nil {
			t.Fatalf("LoadEnv() error: %v", err)
		}
		if env.DBPath != "league.db" {
			t.Errorf("db path = %q, want league.db", env.DBPath)
		}
		if env.LogLevel != "error" {
			t.Errorf("log level = %q, want error", env.LogLevel)
		}
	})
}
