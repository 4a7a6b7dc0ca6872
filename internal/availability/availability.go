package availability

import (
	"sort"
	"time"

	"github.com/derekprior/leaguesched/internal/domain"
)

// ComputeFreeIntervals returns the disjoint, ascending intervals during which
// field is free on day: its availability windows minus every usage block on
// that day. Overlapping windows and malformed intervals are rejected.
func ComputeFreeIntervals(field domain.Field, day time.Weekday) ([]domain.Interval, error) {
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	return freeIntervals(field, day), nil
}

// ValidateField checks every window and block on the field: start before end,
// and no two windows overlapping on the same day.
func ValidateField(field domain.Field) error {
	byDay := make(map[time.Weekday][]domain.Interval)
	for _, w := range field.Windows {
		iv := w.Interval()
		if !iv.Valid() || iv.Start < 0 || iv.End > domain.EndOfDay {
			return domain.Invalid("availability window",
				"field %q %s window %s must open before it closes within one day", field.ID, w.Day, iv)
		}
		for _, other := range byDay[w.Day] {
			if other.Overlaps(iv) {
				return domain.Invalid("availability window",
					"field %q %s windows %s and %s overlap", field.ID, w.Day, other, iv)
			}
		}
		byDay[w.Day] = append(byDay[w.Day], iv)
	}

	for _, b := range field.Blocks {
		if !b.Interval().Valid() {
			return domain.Invalid("usage block",
				"field %q %s %s block %s must start before it ends", field.ID, b.Day, b.Kind, b.Interval())
		}
	}
	return nil
}

func freeIntervals(field domain.Field, day time.Weekday) []domain.Interval {
	windows := field.WindowsOn(day)
	free := make([]domain.Interval, 0, len(windows))
	for _, w := range windows {
		free = append(free, w.Interval())
	}
	sort.Slice(free, func(i, j int) bool {
		return free[i].Start < free[j].Start
	})

	for _, b := range field.BlocksOn(day) {
		free = Subtract(free, b.Interval())
		if len(free) == 0 {
			break
		}
	}
	return free
}

// Subtract removes busy from each interval in free. An interval fully covered
// by busy disappears, one overlapped at an end is shortened, and one strictly
// containing busy splits in two. Order is preserved.
func Subtract(free []domain.Interval, busy domain.Interval) []domain.Interval {
	out := make([]domain.Interval, 0, len(free)+1)
	for _, iv := range free {
		if !iv.Overlaps(busy) {
			out = append(out, iv)
			continue
		}
		if iv.Start < busy.Start {
			out = append(out, domain.Interval{Start: iv.Start, End: busy.Start})
		}
		if busy.End < iv.End {
			out = append(out, domain.Interval{Start: busy.End, End: iv.End})
		}
	}
	return out
}

type indexKey struct {
	fieldID string
	day     time.Weekday
}

// Index holds validated fields for one scheduling run and memoizes free
// intervals per (field, weekday). It is not safe for concurrent use; build
// one per run.
type Index struct {
	fields map[string]domain.Field
	order  []string
	cache  map[indexKey][]domain.Interval
}

// NewIndex validates every field and returns an index over them.
func NewIndex(fields []domain.Field) (*Index, error) {
	idx := &Index{
		fields: make(map[string]domain.Field, len(fields)),
		cache:  make(map[indexKey][]domain.Interval),
	}
	for _, f := range fields {
		if f.ID == "" {
			return nil, domain.Invalid("field", "id is required")
		}
		if _, dup := idx.fields[f.ID]; dup {
			return nil, domain.Invalid("field", "duplicate field id %q", f.ID)
		}
		if err := ValidateField(f); err != nil {
			return nil, err
		}
		idx.fields[f.ID] = f
		idx.order = append(idx.order, f.ID)
	}
	return idx, nil
}

// Field returns the indexed field with the given id.
func (idx *Index) Field(id string) (domain.Field, bool) {
	f, ok := idx.fields[id]
	return f, ok
}

// FieldIDs returns field ids in the order they were indexed.
func (idx *Index) FieldIDs() []string {
	return append([]string(nil), idx.order...)
}

// FreeIntervals returns the free intervals for a field on day. Unknown fields
// have no free time. The returned slice must not be modified.
func (idx *Index) FreeIntervals(fieldID string, day time.Weekday) []domain.Interval {
	key := indexKey{fieldID, day}
	if cached, ok := idx.cache[key]; ok {
		return cached
	}
	f, ok := idx.fields[fieldID]
	if !ok {
		return nil
	}
	free := freeIntervals(f, day)
	idx.cache[key] = free
	return free
}
