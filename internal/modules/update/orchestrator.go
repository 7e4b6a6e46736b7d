package update

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
	"github.com/krxdata/collector/internal/modules/universe"
)

// Vendor is the slice of the rate-limited client the pipeline consumes.
// Implementations degrade every ordinary failure to an empty slice.
type Vendor interface {
	FetchPriceHistory(symbol string, start, end time.Time) []domain.PriceBar
	FetchInvestorFlows(symbol string, start, end time.Time) []domain.InvestorFlow
}

// orchestrator fans per-symbol fetches out across a bounded worker pool.
// Workers share the client's rate gate as their only serialisation point;
// network latency overlaps across workers while the gate enforces the
// aggregate call ceiling. Results stream to the aggregating goroutine in
// completion order - no ordering between symbols is needed.
type orchestrator struct {
	client  Vendor
	workers int
	log     zerolog.Logger
}

// fetchPrices streams per-symbol OHLCV outcomes for the window. The
// returned channel closes once every listing has been processed.
func (o *orchestrator) fetchPrices(listings []universe.Listing, w Window) <-chan outcome {
	return o.fanOut(listings, func(l universe.Listing) outcome {
		bars := o.client.FetchPriceHistory(l.Symbol, w.Start, w.End)
		return outcome{
			symbol: l.Symbol,
			name:   l.Name,
			bars:   bars,
			failed: len(bars) == 0,
		}
	})
}

// fetchFlows streams per-symbol investor-flow outcomes for the window.
func (o *orchestrator) fetchFlows(listings []universe.Listing, w Window) <-chan outcome {
	return o.fanOut(listings, func(l universe.Listing) outcome {
		flows := o.client.FetchInvestorFlows(l.Symbol, w.Start, w.End)
		return outcome{
			symbol: l.Symbol,
			name:   l.Name,
			flows:  flows,
			failed: len(flows) == 0,
		}
	})
}

// fanOut runs fetch for every listing on a pool of worker goroutines. Each
// worker takes one symbol to completion before picking up the next. A
// symbol-level failure is data in the outcome, never an abort: workers keep
// draining the queue regardless of individual results.
func (o *orchestrator) fanOut(listings []universe.Listing, fetch func(universe.Listing) outcome) <-chan outcome {
	jobs := make(chan universe.Listing)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range jobs {
				results <- fetch(l)
			}
		}()
	}

	go func() {
		for _, l := range listings {
			jobs <- l
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	return results
}
