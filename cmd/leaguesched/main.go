package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/config"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/excel"
	"github.com/derekprior/leaguesched/internal/league"
	"github.com/derekprior/leaguesched/internal/schedule"
	"github.com/derekprior/leaguesched/internal/store"
	"github.com/derekprior/leaguesched/internal/validator"
)

const (
	defaultConfigFile = "config.yaml"
	commitAttempts    = 5
)

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func setupLogger(level string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// app carries the loaded config and environment for one command.
type app struct {
	configPath string
	cfg        *config.Config
	env        config.Env
}

func loadApp(configFlag, logLevel string) (*app, error) {
	configPath, err := resolveConfigPath(configFlag)
	if err != nil {
		return nil, err
	}
	env, err := config.LoadEnv(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logLevel = env.LogLevel
	}
	if err := setupLogger(logLevel); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &app{configPath: configPath, cfg: cfg, env: env}, nil
}

func (a *app) dbPath(flag string) string {
	if flag != "" {
		return flag
	}
	return a.env.DBPath
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "leaguesched",
		Short: "Field availability and season schedule generator for recreational leagues",
	}

	var configFile, logLevel string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: config.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LEAGUESCHED_LOG_LEVEL or info)")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter config.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "Inspect field availability",
	}
	var freeDay string
	freeCmd := &cobra.Command{
		Use:          "free <field-id>",
		Short:        "Print a field's free intervals per weekday",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configFile, logLevel)
			if err != nil {
				return err
			}
			return runFree(a, args[0], freeDay)
		},
	}
	freeCmd.Flags().StringVar(&freeDay, "day", "", "Only this weekday (default: every day)")
	fieldsCmd.AddCommand(freeCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate and validate schedules",
	}

	var outputDir, dbFlag, seasonFlag string
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate season schedules from a config file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configFile, logLevel)
			if err != nil {
				return err
			}
			return runGenerate(ctx, a, outputDir, a.dbPath(dbFlag), seasonFlag)
		},
	}
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory for the <season-id>.xlsx workbooks")
	generateCmd.Flags().StringVar(&dbFlag, "db", "", "SQLite database to import into and commit to (default: $LEAGUESCHED_DB, else in memory)")
	generateCmd.Flags().StringVar(&seasonFlag, "season", "", "Generate only this season")

	var validateSeason string
	validateCmd := &cobra.Command{
		Use:          "validate <schedule.xlsx>",
		Short:        "Re-check a schedule workbook against the config",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configFile, logLevel)
			if err != nil {
				return err
			}
			return runValidate(a, validateSeason, args[0])
		},
	}
	validateCmd.Flags().StringVar(&validateSeason, "season", "", "Season the workbook belongs to (default: file name without extension)")
	scheduleCmd.AddCommand(generateCmd, validateCmd)

	gameCmd := &cobra.Command{
		Use:   "game",
		Short: "Work with individual games",
	}
	var check gameCheck
	checkCmd := &cobra.Command{
		Use:          "check",
		Short:        "Report every conflict for a proposed game",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configFile, logLevel)
			if err != nil {
				return err
			}
			return runCheck(ctx, a, check)
		},
	}
	checkCmd.Flags().StringVar(&check.season, "season", "", "Season id (supplies the default duration)")
	checkCmd.Flags().StringVar(&check.date, "date", "", "Game date, YYYY-MM-DD")
	checkCmd.Flags().StringVar(&check.start, "start", "", "Start time, HH:MM")
	checkCmd.Flags().StringVar(&check.field, "field", "", "Field id")
	checkCmd.Flags().StringVar(&check.home, "home", "", "Home team")
	checkCmd.Flags().StringVar(&check.away, "away", "", "Away team")
	checkCmd.Flags().DurationVar(&check.duration, "duration", 0, "Game length (default: the season's game duration)")
	checkCmd.Flags().StringVar(&check.ignore, "ignore", "", "Game id to ignore, when re-checking an edit")
	checkCmd.Flags().BoolVar(&check.unscheduled, "unscheduled", false, "Allow a game with no field")
	checkCmd.Flags().StringVar(&check.db, "db", "", "Check against this SQLite database instead of the config (default: $LEAGUESCHED_DB)")
	for _, name := range []string{"season", "date", "start", "home", "away"} {
		checkCmd.MarkFlagRequired(name)
	}
	gameCmd.AddCommand(checkCmd)

	rootCmd.AddCommand(initCmd, fieldsCmd, scheduleCmd, gameCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

func runFree(a *app, fieldID, day string) error {
	var field *domain.Field
	for _, f := range a.cfg.DomainFields() {
		if f.ID == fieldID {
			field = &f
			break
		}
	}
	if field == nil {
		return fmt.Errorf("unknown field %q", fieldID)
	}

	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	if day != "" {
		d, err := domain.ParseWeekday(day)
		if err != nil {
			return err
		}
		days = []time.Weekday{d}
	}

	fmt.Printf("%s (%s)\n", field.Name, field.ID)
	for _, d := range days {
		free, err := availability.ComputeFreeIntervals(*field, d)
		if err != nil {
			return err
		}
		parts := make([]string, len(free))
		for i, iv := range free {
			parts[i] = iv.String()
		}
		if len(parts) == 0 {
			parts = []string{"-"}
		}
		fmt.Printf("  %-10s %s\n", d, strings.Join(parts, ", "))
	}
	return nil
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func runGenerate(ctx context.Context, a *app, outputDir, dbPath, seasonID string) error {
	seasons := a.cfg.Seasons
	if seasonID != "" {
		s, ok := a.cfg.Season(seasonID)
		if !ok {
			return fmt.Errorf("unknown season %q", seasonID)
		}
		seasons = []config.Season{*s}
	}
	if len(seasons) == 0 {
		return fmt.Errorf("config has no seasons")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := league.NewService(st, log.Logger)
	if err := svc.Import(ctx, a.cfg); err != nil {
		return fmt.Errorf("importing config: %w", err)
	}

	results := make([]*schedule.Result, len(seasons))
	g, gctx := errgroup.WithContext(ctx)
	for i := range seasons {
		season := seasons[i]
		g.Go(func() error {
			result, err := generateWithRetry(gctx, svc, season)
			if err != nil {
				return fmt.Errorf("season %q: %w", season.ID, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fields := a.cfg.DomainFields()
	incomplete := 0
	for i, season := range seasons {
		result := results[i]
		printSummary(&season, result)

		f, err := excel.Generate(season.Domain(), season.DomainTeams(), fields, result)
		if err != nil {
			return fmt.Errorf("generating Excel: %w", err)
		}
		outputPath := filepath.Join(outputDir, season.ID+".xlsx")
		if err := f.SaveAs(outputPath); err != nil {
			return fmt.Errorf("saving file: %w", err)
		}
		fmt.Printf("✓ Schedule saved to %s\n\n", outputPath)
		if len(result.Unplaced) > 0 || result.Outcome != schedule.OutcomeCompleted {
			incomplete++
		}
	}

	if incomplete > 0 {
		return fmt.Errorf("%d of %d seasons are incomplete", incomplete, len(seasons))
	}
	return nil
}

// generateWithRetry re-runs a season whose commit lost a race with another
// season's commit.
func generateWithRetry(ctx context.Context, svc *league.Service, season config.Season) (*schedule.Result, error) {
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		var result *schedule.Result
		result, err = svc.GenerateSeason(ctx, season.ID, season.ScheduleOptions())
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrStaleSnapshot) {
			return nil, err
		}
		log.Debug().Str("season", season.ID).Int("attempt", attempt).Msg("Snapshot stale, regenerating")
	}
	return nil, err
}

func printSummary(season *config.Season, result *schedule.Result) {
	fmt.Printf("%s (%s): %d games placed, %d unplaced\n", season.Name, season.ID, len(result.Placed), len(result.Unplaced))
	if result.Outcome == schedule.OutcomeCancelled {
		fmt.Println("⚠ Generation cancelled; schedule is partial")
	}

	fmt.Println("\nPer Team Metrics:")
	fmt.Printf("  %-15s %6s %4s %4s %8s\n", "Team", "Games", "Home", "Away", "Unplaced")
	for _, team := range season.Teams {
		m := result.TeamMetrics[team]
		if m == nil {
			continue
		}
		fmt.Printf("  %-15s %6d %4d %4d %8d\n", team, m.Games, m.Home, m.Away, m.Unplaced)
	}

	if len(result.Unplaced) > 0 {
		fmt.Printf("\nUnplaced pairings (%d):\n", len(result.Unplaced))
		for _, u := range result.Unplaced {
			fmt.Printf("  ⚠ round %d %s: %s (%s) %s\n", u.Pairing.Round, u.Date.Format(domain.DateLayout), u.Pairing, u.Reason, u.Detail)
		}
	} else {
		fmt.Println("\n✓ Every pairing placed")
	}
	fmt.Println()
}

func runValidate(a *app, seasonID, schedulePath string) error {
	if seasonID == "" {
		seasonID = strings.TrimSuffix(filepath.Base(schedulePath), filepath.Ext(schedulePath))
	}
	violations, err := validator.Validate(a.cfg, seasonID, schedulePath)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	errorCount := 0
	warnings := 0
	for _, v := range violations {
		switch v.Type {
		case "error":
			errorCount++
			fmt.Printf("✗ Row %d: %s\n", v.Row, v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ %s\n", v.Message)
		}
	}

	fmt.Printf("\nValidation complete: %d errors, %d warnings\n", errorCount, warnings)
	if errorCount > 0 {
		return fmt.Errorf("%d conflicts found", errorCount)
	}
	return nil
}

type gameCheck struct {
	season, date, start, field, home, away, ignore, db string
	duration                                           time.Duration
	unscheduled                                        bool
}

func (c gameCheck) candidate(season *config.Season) (conflict.Candidate, error) {
	date, err := time.Parse(domain.DateLayout, c.date)
	if err != nil {
		return conflict.Candidate{}, fmt.Errorf("invalid --date: %w", err)
	}
	start, err := domain.ParseTimeOfDay(c.start)
	if err != nil {
		return conflict.Candidate{}, fmt.Errorf("invalid --start: %w", err)
	}
	duration := c.duration
	if duration == 0 {
		duration = season.GameDuration.Duration
	}
	return conflict.Candidate{
		FieldID:          c.field,
		Date:             date,
		Start:            start,
		Duration:         duration,
		HomeTeamID:       c.home,
		AwayTeamID:       c.away,
		AllowUnscheduled: c.unscheduled,
	}, nil
}

func runCheck(ctx context.Context, a *app, c gameCheck) error {
	season, ok := a.cfg.Season(c.season)
	if !ok {
		return fmt.Errorf("unknown season %q", c.season)
	}
	candidate, err := c.candidate(season)
	if err != nil {
		return err
	}

	var report conflict.Report
	if dbPath := a.dbPath(c.db); dbPath != "" {
		st, err := openStore(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		report, err = league.NewService(st, log.Logger).ValidateGame(ctx, candidate, c.ignore)
		if err != nil {
			return err
		}
	} else {
		idx, err := availability.NewIndex(a.cfg.DomainFields())
		if err != nil {
			return err
		}
		d := conflict.Detector{Availability: idx, Games: conflict.NewIndex(a.cfg.Games())}
		report = d.Check(candidate, c.ignore)
	}

	if report.OK() {
		fmt.Printf("✓ %s @ %s on %s at %s is clear\n", c.away, c.home, c.date, candidate.Interval())
		return nil
	}
	for _, conf := range report.Conflicts {
		fmt.Printf("✗ %s\n", conf)
	}
	return fmt.Errorf("%d conflicts found", len(report.Conflicts))
}

const configTemplate = `# League Schedule Configuration
# =============================
# This file defines fields, their weekly availability, and the seasons to
# schedule on them.

# Fields and when they can be used. Each availability entry is a weekly
# window on one weekday; windows on the same day must not overlap.
#
# Usage blocks carve committed time out of a window. Kind is one of
# LEAGUE, TOURNAMENT, PRACTICE or CLOSED; all of them block games.
fields:
  - id: north
    name: North Diamond
    location: Riverside Park
    availability:
      - day: monday
        open: "17:00"
        close: "22:00"
      - day: wednesday
        open: "17:00"
        close: "22:00"
      - day: saturday
        open: "9:00"
        close: "18:00"
    usage_blocks:
      - day: monday
        kind: PRACTICE
        start: "17:00"
        end: "18:00"
        note: U10 practice
  - id: south
    name: South Diamond
    location: Riverside Park
    availability:
      - day: monday
        open: "18:00"
        close: "22:00"
      - day: saturday
        open: "9:00"
        close: "13:00"

# Seasons to schedule. Teams play a round-robin: one round per cadence step
# starting on the first preferred day on or after start_date. A round that
# lands on a blackout date moves to the next step.
seasons:
  - id: spring-2026
    name: Spring 2026
    start_date: "2026-04-06"
    end_date: "2026-06-29"
    game_duration: 90m
    teams: [Hawks, Owls, Ravens, Wrens, Falcons, Herons]
    blackout_dates:
      - date: "2026-05-25"
        reason: Memorial Day
    options:
      # Play every opponent twice, home and away.
      double_round_robin: false
      # Days between rounds.
      cadence_days: 7
      # Weekday rounds are played on (default: the weekday of start_date).
      preferred_day: monday
      # Fields tried in order; omit to use every field in the order above.
      field_priority: [north, south]
      # Fit more than one game into a field's open time by starting after
      # games already booked there. Off: one game per open stretch.
      pack_fields: true

# Games already on the books (other leagues, tournaments, rainouts). The
# generator works around them. Omit field for a game with no field yet.
existing_games:
  - id: tourney-1
    season: summer-2026
    date: "2026-04-13"
    start: "18:00"
    duration: 2h
    home: Bears
    away: Wolves
    field: south
`
