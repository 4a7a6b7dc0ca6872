package schedule

import (
	"fmt"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

// RoundDates maps rounds onto calendar dates: the first preferred weekday on
// or after the season start, then every cadenceDays. A date that falls on a
// blackout moves to the next cadence step. If the last round lands after the
// season end the whole run fails with domain.ErrCapacity.
func RoundDates(season domain.Season, rounds, cadenceDays int, preferred time.Weekday, blackouts []time.Time) ([]time.Time, error) {
	if cadenceDays <= 0 {
		return nil, domain.Invalid("cadence", "days between rounds must be positive, got %d", cadenceDays)
	}
	if rounds == 0 {
		return nil, nil
	}

	start := domain.Day(season.StartDate)
	end := domain.Day(season.EndDate)

	blackedOut := make(map[time.Time]bool, len(blackouts))
	for _, d := range blackouts {
		blackedOut[domain.Day(d)] = true
	}

	offset := (int(preferred) - int(start.Weekday()) + 7) % 7
	next := start.AddDate(0, 0, offset)

	dates := make([]time.Time, 0, rounds)
	for len(dates) < rounds {
		if next.After(end) {
			return nil, fmt.Errorf("%w: %d rounds every %d days on %s fit only %d between %s and %s",
				domain.ErrCapacity, rounds, cadenceDays, preferred, len(dates),
				start.Format(domain.DateLayout), end.Format(domain.DateLayout))
		}
		if !blackedOut[next] {
			dates = append(dates, next)
		}
		next = next.AddDate(0, 0, cadenceDays)
	}
	return dates, nil
}
