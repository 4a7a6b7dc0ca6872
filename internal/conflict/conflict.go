package conflict

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

// Kind categorizes why a candidate game cannot be placed.
type Kind string

const (
	KindAvailability Kind = "availability"
	KindFieldBooked  Kind = "field_double_booked"
	KindTeamBooked   Kind = "team_double_booked"
	KindInvalid      Kind = "invalid_input"
)

// Conflict names one reason a candidate is not placeable and the entity it
// collides with.
type Conflict struct {
	Kind     Kind
	GameID   string // colliding game, for double-bookings
	TeamID   string // candidate team that is already booked
	FieldID  string
	Interval domain.Interval // requested interval, or the colliding game's interval
	Detail   string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.Kind, c.Detail)
}

// Report lists every conflict found for a candidate. An empty report means
// the game is placeable.
type Report struct {
	Conflicts []Conflict
}

func (r Report) OK() bool {
	return len(r.Conflicts) == 0
}

// Has reports whether any conflict is of kind k.
func (r Report) Has(k Kind) bool {
	for _, c := range r.Conflicts {
		if c.Kind == k {
			return true
		}
	}
	return false
}

// Kinds returns the distinct kinds in the report, in first-seen order.
func (r Report) Kinds() []Kind {
	var kinds []Kind
	for _, c := range r.Conflicts {
		if !slices.Contains(kinds, c.Kind) {
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

// OnlyTeam reports whether the report is non-empty and every conflict is a
// team double-booking.
func (r Report) OnlyTeam() bool {
	if r.OK() {
		return false
	}
	for _, c := range r.Conflicts {
		if c.Kind != KindTeamBooked {
			return false
		}
	}
	return true
}

func (r Report) String() string {
	if r.OK() {
		return "no conflicts"
	}
	parts := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

// Candidate is a proposed or edited game. FieldID may be empty only when
// AllowUnscheduled is set.
type Candidate struct {
	FieldID          string
	Date             time.Time
	Start            domain.TimeOfDay
	Duration         time.Duration
	HomeTeamID       string
	AwayTeamID       string
	AllowUnscheduled bool
}

// FromGame builds a candidate from an existing game, for re-validation after
// an edit. Field-less games are allowed.
func FromGame(g domain.Game) Candidate {
	return Candidate{
		FieldID:          g.FieldID,
		Date:             g.Date,
		Start:            g.Start,
		Duration:         g.Duration,
		HomeTeamID:       g.HomeTeamID,
		AwayTeamID:       g.AwayTeamID,
		AllowUnscheduled: true,
	}
}

func (c Candidate) Interval() domain.Interval {
	return domain.Interval{Start: c.Start, End: c.Start.Add(c.Duration)}
}

// Availability answers which intervals a field is free on a weekday.
type Availability interface {
	Field(id string) (domain.Field, bool)
	FreeIntervals(fieldID string, day time.Weekday) []domain.Interval
}

// GameLookup gives the games on a field or involving a team on a date.
type GameLookup interface {
	GamesOnField(fieldID string, date time.Time) []domain.Game
	GamesForTeam(teamID string, date time.Time) []domain.Game
}

// Detector is a pure predicate over a snapshot of availability and games.
type Detector struct {
	Availability Availability
	Games        GameLookup
}

// Check evaluates every rule against c and reports all conflicts in one pass.
// Games whose id equals ignoreGameID are skipped, so an edited game does not
// collide with its own stored copy.
func (d Detector) Check(c Candidate, ignoreGameID string) Report {
	var conflicts []Conflict

	if c.HomeTeamID == "" || c.AwayTeamID == "" {
		conflicts = append(conflicts, Conflict{Kind: KindInvalid, Detail: "home and away teams are required"})
	} else if c.HomeTeamID == c.AwayTeamID {
		conflicts = append(conflicts, Conflict{
			Kind:   KindInvalid,
			TeamID: c.HomeTeamID,
			Detail: fmt.Sprintf("team %q cannot play itself", c.HomeTeamID),
		})
	}

	validDuration := c.Duration > 0
	if !validDuration {
		conflicts = append(conflicts, Conflict{
			Kind:   KindInvalid,
			Detail: fmt.Sprintf("duration %s must be positive", c.Duration),
		})
	}
	// A game starts and ends on its own date.
	if c.Start < 0 || c.Start >= domain.EndOfDay {
		conflicts = append(conflicts, Conflict{
			Kind:   KindInvalid,
			Detail: fmt.Sprintf("start %s is not a time of day", c.Start),
		})
	} else if validDuration && c.Start.Add(c.Duration) > domain.EndOfDay {
		conflicts = append(conflicts, Conflict{
			Kind:   KindInvalid,
			Detail: fmt.Sprintf("%s starting %s runs past midnight", c.Duration, c.Start),
		})
	}

	hasField := c.FieldID != ""
	if !hasField && !c.AllowUnscheduled {
		conflicts = append(conflicts, Conflict{Kind: KindInvalid, Detail: "field is required"})
	}
	if hasField && d.Availability != nil {
		if _, ok := d.Availability.Field(c.FieldID); !ok {
			conflicts = append(conflicts, Conflict{
				Kind:    KindInvalid,
				FieldID: c.FieldID,
				Detail:  fmt.Sprintf("unknown field %q", c.FieldID),
			})
			hasField = false
		}
	}

	// Interval checks need a real interval.
	if !validDuration {
		return Report{Conflicts: conflicts}
	}

	requested := c.Interval()
	date := domain.Day(c.Date)

	if hasField {
		conflicts = append(conflicts, d.checkAvailability(c.FieldID, date, requested)...)
		conflicts = append(conflicts, d.checkField(c.FieldID, date, requested, ignoreGameID)...)
	}
	conflicts = append(conflicts, d.checkTeams(c, date, requested, ignoreGameID)...)

	return Report{Conflicts: conflicts}
}

func (d Detector) checkAvailability(fieldID string, date time.Time, requested domain.Interval) []Conflict {
	var free []domain.Interval
	if d.Availability != nil {
		free = d.Availability.FreeIntervals(fieldID, date.Weekday())
	}
	for _, iv := range free {
		if iv.Contains(requested) {
			return nil
		}
	}

	detail := fmt.Sprintf("field %q is not free %s on %s", fieldID, requested, date.Weekday())
	if len(free) == 0 {
		detail = fmt.Sprintf("field %q has no free time on %s", fieldID, date.Weekday())
	} else {
		parts := make([]string, len(free))
		for i, iv := range free {
			parts[i] = iv.String()
		}
		detail += " (free: " + strings.Join(parts, ", ") + ")"
	}
	return []Conflict{{
		Kind:     KindAvailability,
		FieldID:  fieldID,
		Interval: requested,
		Detail:   detail,
	}}
}

func (d Detector) checkField(fieldID string, date time.Time, requested domain.Interval, ignoreGameID string) []Conflict {
	if d.Games == nil {
		return nil
	}
	var conflicts []Conflict
	for _, g := range d.Games.GamesOnField(fieldID, date) {
		if !blocking(g, ignoreGameID) || !Overlaps(g.Interval(), requested) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:     KindFieldBooked,
			GameID:   g.ID,
			FieldID:  fieldID,
			Interval: g.Interval(),
			Detail: fmt.Sprintf("field %q already has game %s (%s vs %s) at %s",
				fieldID, g.ID, g.HomeTeamID, g.AwayTeamID, g.Interval()),
		})
	}
	return conflicts
}

func (d Detector) checkTeams(c Candidate, date time.Time, requested domain.Interval, ignoreGameID string) []Conflict {
	if d.Games == nil {
		return nil
	}
	teams := []string{c.HomeTeamID, c.AwayTeamID}
	if c.HomeTeamID == c.AwayTeamID {
		teams = teams[:1]
	}

	var conflicts []Conflict
	for _, team := range teams {
		if team == "" {
			continue
		}
		for _, g := range d.Games.GamesForTeam(team, date) {
			if !blocking(g, ignoreGameID) || !Overlaps(g.Interval(), requested) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Kind:     KindTeamBooked,
				GameID:   g.ID,
				TeamID:   team,
				FieldID:  g.FieldID,
				Interval: g.Interval(),
				Detail: fmt.Sprintf("team %q already plays game %s (%s vs %s) at %s",
					team, g.ID, g.HomeTeamID, g.AwayTeamID, g.Interval()),
			})
		}
	}
	return conflicts
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals do not overlap.
func Overlaps(a, b domain.Interval) bool {
	return a.Overlaps(b)
}

func blocking(g domain.Game, ignoreGameID string) bool {
	if ignoreGameID != "" && g.ID == ignoreGameID {
		return false
	}
	return g.Status.Occupies()
}
