package universe

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
)

// MasterClient is the slice of the vendor client the refresh service needs.
type MasterClient interface {
	FetchSymbolMaster() []domain.SymbolMaster
	FetchDelistedSymbols(start, end time.Time) []domain.DelistedSymbol
}

// RefreshResult summarises one master refresh.
type RefreshResult struct {
	Fetched     int
	Upserted    int
	Deactivated int
}

// Service keeps the stock master aligned with the vendor listing feed.
// The daily update pipeline only reads the master; all mutation lives here.
type Service struct {
	client MasterClient
	repo   *StockRepository
	log    zerolog.Logger
}

// NewService creates a new universe service
func NewService(client MasterClient, repo *StockRepository, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		repo:   repo,
		log:    log.With().Str("service", "universe").Logger(),
	}
}

// Refresh pulls the current listing and the trailing delisting feed, upserts
// new/changed rows and deactivates delisted ones. An empty listing response
// is fatal for the refresh: wiping activity flags on a vendor hiccup would
// poison the next collection run's population.
func (s *Service) Refresh() (*RefreshResult, error) {
	masters := s.client.FetchSymbolMaster()
	if len(masters) == 0 {
		return nil, fmt.Errorf("universe: vendor returned empty symbol master")
	}

	result := &RefreshResult{Fetched: len(masters)}

	for _, m := range masters {
		if err := s.repo.Upsert(m); err != nil {
			return nil, err
		}
		result.Upserted++
	}

	for _, d := range s.client.FetchDelistedSymbols(time.Time{}, time.Time{}) {
		if err := s.repo.Deactivate(d.Symbol, d.DelistingDate); err != nil {
			return nil, err
		}
		result.Deactivated++
	}

	s.log.Info().
		Int("fetched", result.Fetched).
		Int("upserted", result.Upserted).
		Int("deactivated", result.Deactivated).
		Msg("Stock master refreshed")

	return result, nil
}
