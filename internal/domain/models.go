package domain

import (
	"fmt"
	"strings"
	"time"
)

// UsageKind describes why a field is committed. All kinds block scheduling
// equally; the kind is carried for display and audit.
type UsageKind string

const (
	UsageLeague     UsageKind = "LEAGUE"
	UsageTournament UsageKind = "TOURNAMENT"
	UsagePractice   UsageKind = "PRACTICE"
	UsageClosed     UsageKind = "CLOSED"
)

func ParseUsageKind(raw string) (UsageKind, error) {
	switch kind := UsageKind(strings.ToUpper(strings.TrimSpace(raw))); kind {
	case UsageLeague, UsageTournament, UsagePractice, UsageClosed:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown usage kind %q", raw)
	}
}

type GameStatus string

const (
	StatusScheduled  GameStatus = "SCHEDULED"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusCompleted  GameStatus = "COMPLETED"
	StatusCancelled  GameStatus = "CANCELLED"
	StatusPostponed  GameStatus = "POSTPONED"
)

func ParseGameStatus(raw string) (GameStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return StatusScheduled, nil
	}
	switch status := GameStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusPostponed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown game status %q", raw)
	}
}

// Occupies reports whether a game with this status holds its field and teams.
func (s GameStatus) Occupies() bool {
	return s != StatusCancelled
}

// AvailabilityWindow is a recurring weekly interval when a field is open.
type AvailabilityWindow struct {
	FieldID string
	Day     time.Weekday
	Open    TimeOfDay
	Close   TimeOfDay
}

func (w AvailabilityWindow) Interval() Interval {
	return Interval{Start: w.Open, End: w.Close}
}

// UsageBlock is a recurring weekly commitment that removes time from a field
// regardless of its windows.
type UsageBlock struct {
	FieldID string
	Day     time.Weekday
	Kind    UsageKind
	Start   TimeOfDay
	End     TimeOfDay
	Note    string
}

func (b UsageBlock) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

type Field struct {
	ID       string
	Name     string
	Location string
	Windows  []AvailabilityWindow
	Blocks   []UsageBlock
}

// WindowsOn returns the field's windows for day in declaration order.
func (f Field) WindowsOn(day time.Weekday) []AvailabilityWindow {
	var out []AvailabilityWindow
	for _, w := range f.Windows {
		if w.Day == day {
			out = append(out, w)
		}
	}
	return out
}

// BlocksOn returns the field's usage blocks for day in declaration order.
func (f Field) BlocksOn(day time.Weekday) []UsageBlock {
	var out []UsageBlock
	for _, b := range f.Blocks {
		if b.Day == day {
			out = append(out, b)
		}
	}
	return out
}

type Team struct {
	ID       string
	Name     string
	SeasonID string
}

type Season struct {
	ID           string
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	GameDuration time.Duration
}

func (s Season) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return Invalid("season", "id is required")
	}
	if s.EndDate.Before(s.StartDate) {
		return Invalid("season", "end date %s is before start date %s",
			s.EndDate.Format(DateLayout), s.StartDate.Format(DateLayout))
	}
	if s.GameDuration < 0 {
		return Invalid("season", "game duration %s must not be negative", s.GameDuration)
	}
	return nil
}

// Game is a single fixture. An empty FieldID means the game is unscheduled
// (TBD); such games still hold both teams at their time.
type Game struct {
	ID         string
	SeasonID   string
	Round      int
	Date       time.Time
	Start      TimeOfDay
	Duration   time.Duration
	HomeTeamID string
	AwayTeamID string
	FieldID    string
	Status     GameStatus
}

func (g Game) Interval() Interval {
	return Interval{Start: g.Start, End: g.Start.Add(g.Duration)}
}

func (g Game) HasField() bool {
	return g.FieldID != ""
}

func (g Game) Involves(teamID string) bool {
	return g.HomeTeamID == teamID || g.AwayTeamID == teamID
}
