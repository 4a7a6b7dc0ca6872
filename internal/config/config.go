package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/schedule"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse(domain.DateLayout, value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

// Clock is a time of day written as "HH:MM" or "H:MM PM".
type Clock struct {
	TimeOfDay domain.TimeOfDay
}

func (c *Clock) UnmarshalYAML(value *yaml.Node) error {
	t, err := domain.ParseTimeOfDay(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	c.TimeOfDay = t
	return nil
}

// Weekday accepts full or abbreviated day names.
type Weekday struct {
	Day time.Weekday
}

func (w *Weekday) UnmarshalYAML(value *yaml.Node) error {
	d, err := domain.ParseWeekday(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	w.Day = d
	return nil
}

// Duration accepts Go duration strings ("90m", "1h30m") or bare minutes.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var minutes int
	if err := value.Decode(&minutes); err == nil {
		d.Duration = time.Duration(minutes) * time.Minute
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

type Window struct {
	Day   Weekday `yaml:"day"`
	Open  Clock   `yaml:"open"`
	Close Clock   `yaml:"close"`
}

type UsageBlock struct {
	Day   Weekday `yaml:"day"`
	Kind  string  `yaml:"kind"`
	Start Clock   `yaml:"start"`
	End   Clock   `yaml:"end"`
	Note  string  `yaml:"note"`
}

type Field struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Location     string       `yaml:"location"`
	Availability []Window     `yaml:"availability"`
	UsageBlocks  []UsageBlock `yaml:"usage_blocks"`
}

type BlackoutDate struct {
	Date   Date   `yaml:"date"`
	Reason string `yaml:"reason"`
}

type Options struct {
	DoubleRoundRobin bool     `yaml:"double_round_robin"`
	CadenceDays      int      `yaml:"cadence_days"`
	PreferredDay     *Weekday `yaml:"preferred_day"`
	FieldPriority    []string `yaml:"field_priority"`
	PackFields       bool     `yaml:"pack_fields"`
}

type Season struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	StartDate     Date           `yaml:"start_date"`
	EndDate       Date           `yaml:"end_date"`
	GameDuration  Duration       `yaml:"game_duration"`
	Teams         []string       `yaml:"teams"`
	BlackoutDates []BlackoutDate `yaml:"blackout_dates"`
	Options       Options        `yaml:"options"`
}

// Game is an already-booked game the generator must work around.
type Game struct {
	ID       string   `yaml:"id"`
	Season   string   `yaml:"season"`
	Date     Date     `yaml:"date"`
	Start    Clock    `yaml:"start"`
	Duration Duration `yaml:"duration"`
	Home     string   `yaml:"home"`
	Away     string   `yaml:"away"`
	Field    string   `yaml:"field"`
	Status   string   `yaml:"status"`
}

type Config struct {
	Fields        []Field  `yaml:"fields"`
	Seasons       []Season `yaml:"seasons"`
	ExistingGames []Game   `yaml:"existing_games"`
}

// Env holds settings read from the environment, optionally seeded from a
// .env file next to the config.
type Env struct {
	DBPath   string
	LogLevel string
}

// LoadEnv loads a .env file beside configPath if one exists, then reads
// LEAGUESCHED_DB and LEAGUESCHED_LOG_LEVEL. Variables already set in the
// process environment win.
func LoadEnv(configPath string) (Env, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return Env{}, fmt.Errorf("loading .env file: %w", err)
	}
	return Env{
		DBPath:   os.Getenv("LEAGUESCHED_DB"),
		LogLevel: os.Getenv("LEAGUESCHED_LOG_LEVEL"),
	}, nil
}

// LoadFromBytes parses YAML bytes into a Config and validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// Season returns the season with the given id.
func (c *Config) Season(id string) (*Season, bool) {
	for i := range c.Seasons {
		if c.Seasons[i].ID == id {
			return &c.Seasons[i], true
		}
	}
	return nil, false
}

// DomainFields converts the configured fields, keeping file order.
func (c *Config) DomainFields() []domain.Field {
	fields := make([]domain.Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, f.domain())
	}
	return fields
}

// Games converts existing games. Games without an id get one derived from
// their position so re-runs see the same ids.
func (c *Config) Games() []domain.Game {
	games := make([]domain.Game, 0, len(c.ExistingGames))
	for i, g := range c.ExistingGames {
		id := g.ID
		if id == "" {
			id = fmt.Sprintf("existing-%d", i+1)
		}
		status, _ := domain.ParseGameStatus(g.Status)
		games = append(games, domain.Game{
			ID:         id,
			SeasonID:   g.Season,
			Date:       g.Date.Time,
			Start:      g.Start.TimeOfDay,
			Duration:   g.Duration.Duration,
			HomeTeamID: g.Home,
			AwayTeamID: g.Away,
			FieldID:    g.Field,
			Status:     status,
		})
	}
	return games
}

func (f Field) domain() domain.Field {
	out := domain.Field{ID: f.ID, Name: f.Name, Location: f.Location}
	if out.Name == "" {
		out.Name = f.ID
	}
	for _, w := range f.Availability {
		out.Windows = append(out.Windows, domain.AvailabilityWindow{
			FieldID: f.ID,
			Day:     w.Day.Day,
			Open:    w.Open.TimeOfDay,
			Close:   w.Close.TimeOfDay,
		})
	}
	for _, b := range f.UsageBlocks {
		kind, _ := domain.ParseUsageKind(b.Kind)
		out.Blocks = append(out.Blocks, domain.UsageBlock{
			FieldID: f.ID,
			Day:     b.Day.Day,
			Kind:    kind,
			Start:   b.Start.TimeOfDay,
			End:     b.End.TimeOfDay,
			Note:    b.Note,
		})
	}
	return out
}

// Domain converts the season header.
func (s *Season) Domain() domain.Season {
	return domain.Season{
		ID:           s.ID,
		Name:         s.Name,
		StartDate:    s.StartDate.Time,
		EndDate:      s.EndDate.Time,
		GameDuration: s.GameDuration.Duration,
	}
}

// DomainTeams returns the season's teams. Team ids are their names.
func (s *Season) DomainTeams() []domain.Team {
	teams := make([]domain.Team, len(s.Teams))
	for i, name := range s.Teams {
		teams[i] = domain.Team{ID: name, Name: name, SeasonID: s.ID}
	}
	return teams
}

// ScheduleOptions maps the season's options onto generator options.
func (s *Season) ScheduleOptions() schedule.Options {
	opts := schedule.Options{
		DoubleRoundRobin: s.Options.DoubleRoundRobin,
		CadenceDays:      s.Options.CadenceDays,
		FieldPriority:    s.Options.FieldPriority,
		PackFields:       s.Options.PackFields,
	}
	if s.Options.PreferredDay != nil {
		day := s.Options.PreferredDay.Day
		opts.PreferredDay = &day
	}
	for _, b := range s.BlackoutDates {
		opts.BlackoutDates = append(opts.BlackoutDates, b.Date.Time)
	}
	return opts
}

func (c *Config) validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}

	fieldIDs := make(map[string]bool)
	for _, f := range c.Fields {
		if f.ID == "" {
			return fmt.Errorf("field %q: id is required", f.Name)
		}
		if fieldIDs[f.ID] {
			return fmt.Errorf("field %q is defined twice", f.ID)
		}
		fieldIDs[f.ID] = true
		for _, b := range f.UsageBlocks {
			if _, err := domain.ParseUsageKind(b.Kind); err != nil {
				return fmt.Errorf("field %q: %w", f.ID, err)
			}
		}
		if err := availability.ValidateField(f.domain()); err != nil {
			return fmt.Errorf("field %q: %w", f.ID, err)
		}
	}

	seasonIDs := make(map[string]bool)
	for i := range c.Seasons {
		s := &c.Seasons[i]
		if seasonIDs[s.ID] {
			return fmt.Errorf("season %q is defined twice", s.ID)
		}
		seasonIDs[s.ID] = true
		if err := s.Domain().Validate(); err != nil {
			return err
		}
		if s.GameDuration.Duration <= 0 {
			return fmt.Errorf("season %q: game_duration is required", s.ID)
		}
		if len(s.Teams) < 2 {
			return fmt.Errorf("season %q needs at least two teams", s.ID)
		}
		seen := make(map[string]bool)
		for _, team := range s.Teams {
			if team == "" {
				return fmt.Errorf("season %q has a blank team name", s.ID)
			}
			if seen[team] {
				return fmt.Errorf("season %q lists team %q twice", s.ID, team)
			}
			seen[team] = true
		}
		for _, id := range s.Options.FieldPriority {
			if !fieldIDs[id] {
				return fmt.Errorf("season %q: field_priority names unknown field %q", s.ID, id)
			}
		}
		if s.Options.CadenceDays < 0 {
			return fmt.Errorf("season %q: cadence_days must not be negative", s.ID)
		}
	}

	for i, g := range c.ExistingGames {
		if g.Home == "" || g.Away == "" {
			return fmt.Errorf("existing game %d: home and away are required", i+1)
		}
		if g.Field != "" && !fieldIDs[g.Field] {
			return fmt.Errorf("existing game %d: unknown field %q", i+1, g.Field)
		}
		if g.Duration.Duration <= 0 {
			return fmt.Errorf("existing game %d: duration is required", i+1)
		}
		if _, err := domain.ParseGameStatus(g.Status); err != nil {
			return fmt.Errorf("existing game %d: %w", i+1, err)
		}
	}

	return nil
}
