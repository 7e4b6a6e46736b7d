package update

import (
	"fmt"
	"time"
)

// ErrNoBaseline marks an empty store: the incremental pipeline cannot
// bootstrap itself, initial population belongs to the historical bulk
// loader.
var ErrNoBaseline = fmt.Errorf("ohlcv_daily is empty; run the historical bulk load first")

// Resolver computes the fetch window for a run.
type Resolver struct {
	prices *PriceRepository
	loc    *time.Location
	now    func() time.Time
}

// NewResolver creates a resolver using the given market timezone.
func NewResolver(prices *PriceRepository, loc *time.Location) *Resolver {
	return &Resolver{
		prices: prices,
		loc:    loc,
		now:    time.Now,
	}
}

// Resolve computes [start, end]: start is the day after the stored
// high-water-mark, end is yesterday in the market timezone. Today is never
// included, its session may still be open. An empty window (start > end)
// means the store is already current and the run is a no-op.
func (r *Resolver) Resolve() (Window, error) {
	last, ok, err := r.prices.MaxTradeDate()
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{}, ErrNoBaseline
	}

	now := r.now().In(r.loc)
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	return Window{
		Start: last.AddDate(0, 0, 1),
		End:   yesterday,
	}, nil
}

// SingleDay returns a one-day window for explicit-date runs.
func SingleDay(day time.Time) Window {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: day, End: day}
}
