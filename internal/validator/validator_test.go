package validator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/derekprior/leaguesched/internal/config"
	"github.com/derekprior/leaguesched/internal/excel"
	"github.com/derekprior/leaguesched/internal/schedule"
	"github.com/xuri/excelize/v2"
)

const testConfigYAML = `
fields:
  - id: north
    name: North Diamond
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
    name: South Diamond
    availability:
      - day: monday
        open: "17:00"
        close: "23:00"

seasons:
  - id: spring
    name: Spring 2026
    start_date: "2026-04-06"
    end_date: "2026-06-29"
    game_duration: 90m
    teams: [Hawks, Owls, Ravens, Wrens]
    blackout_dates:
      - date: "2026-04-13"
        reason: Spring break
`

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes() error: %v", err)
	}
	return cfg
}

// writeSchedule generates the season and saves its workbook, returning the
// open workbook for edits and the path it was saved to.
func writeSchedule(t *testing.T, cfg *config.Config) (*excelize.File, string) {
	t.Helper()
	season, _ := cfg.Season("spring")
	result, err := schedule.Generate(context.Background(), season.Domain(), season.DomainTeams(),
		cfg.DomainFields(), cfg.Games(), season.ScheduleOptions())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(result.Unplaced) != 0 {
		t.Fatalf("unplaced = %d, want 0", len(result.Unplaced))
	}
	f, err := excel.Generate(season.Domain(), season.DomainTeams(), cfg.DomainFields(), result)
	if err != nil {
		t.Fatalf("excel.Generate() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "spring.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error: %v", err)
	}
	return f, path
}

func errorsOnly(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Type == "error" {
			out = append(out, v)
		}
	}
	return out
}

func TestValidateGeneratedSchedule(t *testing.T) {
	cfg := loadConfig(t)
	_, path := writeSchedule(t, cfg)

	violations, err := Validate(cfg, "spring", path)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	for _, v := range violations {
		t.Errorf("row %d %s: %s", v.Row, v.Type, v.Message)
	}
}

func TestValidateEditedSchedule(t *testing.T) {
	cfg := loadConfig(t)
	f, path := writeSchedule(t, cfg)

	// Row 2 is the 17:00 practice block, row 3 the first 18:00 game on north.
	game, err := f.GetCellValue(excel.MasterSheet, "D3")
	if err != nil || !strings.Contains(game, " @ ") {
		t.Fatalf("D3 = %q, %v; want a game", game, err)
	}
	f.SetCellValue(excel.MasterSheet, "E3", game)
	f.SetCellValue(excel.MasterSheet, "D2", "Cardinals @ Bears")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	violations, err := Validate(cfg, "spring", path)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	t.Run("double-booked teams", func(t *testing.T) {
		found := 0
		for _, v := range errorsOnly(violations) {
			if v.Row == 3 && strings.Contains(v.Message, "team_double_booked") {
				found++
			}
		}
		// Both copies of the game report both of their teams.
		if found != 4 {
			t.Errorf("team conflicts on row 3 = %d, want 4: %+v", found, violations)
		}
	})

	t.Run("game inside the practice block", func(t *testing.T) {
		var availability, unknown bool
		for _, v := range errorsOnly(violations) {
			if v.Row != 2 {
				continue
			}
			if strings.Contains(v.Message, "availability") {
				availability = true
			}
			if strings.Contains(v.Message, `"Bears" is not a team`) {
				unknown = true
			}
		}
		if !availability || !unknown {
			t.Errorf("row 2 violations = %+v", violations)
		}
	})

	t.Run("extra games warn about completeness", func(t *testing.T) {
		warned := false
		for _, v := range violations {
			if v.Type == "warning" && strings.Contains(v.Message, "expected 1") {
				warned = true
			}
		}
		if !warned {
			t.Error("expected a completeness warning")
		}
	})
}

func TestValidateUnknownSeason(t *testing.T) {
	cfg := loadConfig(t)
	if _, err := Validate(cfg, "fall", "missing.xlsx"); err == nil {
		t.Error("expected error")
	}
}

func TestParseGameCell(t *testing.T) {
	tests := []struct {
		cell       string
		away, home string
		ok         bool
	}{
		{"Owls @ Hawks", "Owls", "Hawks", true},
		{"Red Sox @ Blue Jays", "Red Sox", "Blue Jays", true},
		{"PRACTICE 17:00-18:00", "", "", false},
		{" @ Hawks", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			away, home, ok := parseGameCell(tt.cell)
			if away != tt.away || home != tt.home || ok != tt.ok {
				t.Errorf("parseGameCell(%q) = %q, %q, %v", tt.cell, away, home, ok)
			}
		})
	}
}
