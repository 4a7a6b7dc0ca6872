package slots

import (
	"iter"
	"time"

	"github.com/derekprior/leaguesched/internal/availability"
	"github.com/derekprior/leaguesched/internal/conflict"
	"github.com/derekprior/leaguesched/internal/domain"
)

// Slot is a candidate (field, start) on a date with enough free time for the
// requested duration. Team conflicts are not checked.
type Slot struct {
	FieldID string
	Date    time.Time
	Start   domain.TimeOfDay
	End     domain.TimeOfDay
}

// Finder enumerates candidate slots from the availability index alone, one
// per free interval. With Pack set, games already on a field that date are
// carved out of its free intervals first, so a field can take several games
// in one interval.
type Finder struct {
	Availability conflict.Availability
	Games        conflict.GameLookup
	Pack         bool
}

// Candidates yields slots on date for fields in priority order. Within a
// field, free intervals are taken in ascending order and only each interval's
// start is proposed, provided the whole duration fits. The sequence holds no
// state; ranging over it again re-derives it.
func (f Finder) Candidates(date time.Time, duration time.Duration, fieldIDs []string) iter.Seq[Slot] {
	date = domain.Day(date)
	return func(yield func(Slot) bool) {
		if duration <= 0 || f.Availability == nil {
			return
		}
		for _, fieldID := range fieldIDs {
			for _, iv := range f.free(fieldID, date) {
				end := iv.Start.Add(duration)
				if end > iv.End {
					continue
				}
				if !yield(Slot{FieldID: fieldID, Date: date, Start: iv.Start, End: end}) {
					return
				}
			}
		}
	}
}

// All collects Candidates into a slice.
func (f Finder) All(date time.Time, duration time.Duration, fieldIDs []string) []Slot {
	var out []Slot
	for s := range f.Candidates(date, duration, fieldIDs) {
		out = append(out, s)
	}
	return out
}

func (f Finder) free(fieldID string, date time.Time) []domain.Interval {
	free := f.Availability.FreeIntervals(fieldID, date.Weekday())
	if !f.Pack || f.Games == nil {
		return free
	}
	for _, g := range f.Games.GamesOnField(fieldID, date) {
		if !g.Status.Occupies() || g.Duration <= 0 {
			continue
		}
		free = availability.Subtract(free, g.Interval())
	}
	return free
}
