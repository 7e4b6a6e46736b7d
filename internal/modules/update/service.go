package update

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
	"github.com/krxdata/collector/internal/modules/universe"
)

const progressEvery = 500

// Config holds pipeline tuning.
type Config struct {
	Workers    int
	BatchSize  int
	Thresholds Thresholds
	Location   *time.Location
}

// Service runs the daily incremental update:
// INIT → RESOLVE_WINDOW → FETCH_PRICES → FETCH_FLOWS → ANALYZE → REPORT.
// Per-symbol failures are outcome counts; only an unusable store or window
// escapes as an error.
type Service struct {
	cfg       Config
	stocks    *universe.StockRepository
	prices    *PriceRepository
	investors *InvestorRepository
	logs      *LogRepository
	resolver  *Resolver
	detector  *Detector
	client    Vendor
	log       zerolog.Logger
}

// NewService wires the pipeline. The client must already share its rate
// gate with any other consumers in the process.
func NewService(cfg Config, client Vendor, stocks *universe.StockRepository,
	prices *PriceRepository, investors *InvestorRepository, logs *LogRepository,
	log zerolog.Logger) *Service {

	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Thresholds.PriceMove <= 0 {
		cfg.Thresholds.PriceMove = 0.295
	}
	if cfg.Thresholds.LargeNetFlow <= 0 {
		cfg.Thresholds.LargeNetFlow = 5e10
	}

	return &Service{
		cfg:       cfg,
		stocks:    stocks,
		prices:    prices,
		investors: investors,
		logs:      logs,
		resolver:  NewResolver(prices, cfg.Location),
		detector:  NewDetector(cfg.Thresholds),
		client:    client,
		log:       log.With().Str("service", "update").Logger(),
	}
}

// Run executes one daily update. target selects single-day mode; nil
// resolves the window from the store's high-water-mark. An empty window
// short-circuits to a no-op result, not an error.
func (s *Service) Run(target *time.Time) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().In(s.cfg.Location),
		names:     make(map[string]string),
	}

	s.log.Info().Str("run_id", result.RunID).Str("phase", string(PhaseResolveWindow)).Msg("Daily update starting")

	var window Window
	if target != nil {
		window = SingleDay(*target)
	} else {
		var err error
		window, err = s.resolver.Resolve()
		if err != nil {
			return nil, err
		}
	}
	result.Window = window

	if window.Empty() {
		s.log.Info().
			Str("last_stored", window.End.Format(dateLayout)).
			Msg("Store already current, nothing to update")
		result.NoOp = true
		result.FinishedAt = time.Now().In(s.cfg.Location)
		return result, nil
	}

	allStocks, err := s.stocks.ListActive(false)
	if err != nil {
		return nil, err
	}
	if len(allStocks) == 0 {
		return nil, fmt.Errorf("stock master is empty; refresh the universe first")
	}
	equities, err := s.stocks.ListActive(true)
	if err != nil {
		return nil, err
	}
	result.TotalSymbols = len(allStocks)
	result.InvestorSymbols = len(equities)

	for _, l := range allStocks {
		result.names[l.Symbol] = l.Name
	}

	// Baseline for the large-move scan, one query per run.
	prevClose, err := s.prices.PrevCloses(window.Start)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("start", window.Start.Format(dateLayout)).
		Str("end", window.End.Format(dateLayout)).
		Int("symbols", result.TotalSymbols).
		Int("investor_symbols", result.InvestorSymbols).
		Int("workers", s.cfg.Workers).
		Msg("Update window resolved")

	orch := &orchestrator{client: s.client, workers: s.cfg.Workers, log: s.log}

	if err := s.runPricePhase(orch, allStocks, window, result); err != nil {
		return nil, err
	}
	if err := s.runFlowPhase(orch, equities, window, result); err != nil {
		return nil, err
	}

	s.log.Info().Str("phase", string(PhaseAnalyze)).Msg("Scanning fetched rows for anomalies")
	result.Anomalies = s.detector.Scan(result, prevClose)
	s.log.Info().Int("anomalies", len(result.Anomalies)).Msg("Anomaly scan complete")

	result.FinishedAt = time.Now().In(s.cfg.Location)
	return result, nil
}

// runPricePhase drains the price fan-out, batching OHLCV and derived
// market-cap writes. Batches flush only here, on the aggregating goroutine;
// workers never touch the buffers.
func (s *Service) runPricePhase(orch *orchestrator, listings []universe.Listing, window Window, result *RunResult) error {
	phaseStart := time.Now().In(s.cfg.Location)
	s.log.Info().Str("phase", string(PhaseFetchPrices)).Int("symbols", len(listings)).Msg("Fetching price history")

	var barBatch []domain.PriceBar
	done := 0

	for out := range orch.fetchPrices(listings, window) {
		done++

		if out.failed {
			result.OHLCV.Fail++
			result.OHLCV.FailSymbols = append(result.OHLCV.FailSymbols, out.symbol)
		} else {
			result.OHLCV.Success++
			for _, bar := range out.bars {
				if bar.TradeDate.IsZero() {
					continue // unparseable vendor date, dropped
				}
				result.priceRows = append(result.priceRows, bar)
				barBatch = append(barBatch, bar)
			}
		}

		if len(barBatch) >= s.cfg.BatchSize {
			if err := s.flushBars(barBatch, result); err != nil {
				return err
			}
			barBatch = barBatch[:0]
		}

		if done%progressEvery == 0 || done == len(listings) {
			s.log.Info().
				Int("done", done).
				Int("total", len(listings)).
				Int("success", result.OHLCV.Success).
				Int("fail", result.OHLCV.Fail).
				Msg("Price fetch progress")
		}
	}

	if len(barBatch) > 0 {
		if err := s.flushBars(barBatch, result); err != nil {
			return err
		}
	}

	s.logPhase(result, "OHLCV", window, result.OHLCV, phaseStart)
	s.logPhase(result, "MARKET_CAP", window, result.MarketCap, phaseStart)
	return nil
}

// runFlowPhase drains the investor-flow fan-out for the equity subset.
func (s *Service) runFlowPhase(orch *orchestrator, listings []universe.Listing, window Window, result *RunResult) error {
	phaseStart := time.Now().In(s.cfg.Location)
	s.log.Info().Str("phase", string(PhaseFetchFlows)).Int("symbols", len(listings)).Msg("Fetching investor flows")

	var flowBatch []domain.InvestorFlow
	done := 0

	for out := range orch.fetchFlows(listings, window) {
		done++

		if out.failed {
			result.Investor.Fail++
			result.Investor.FailSymbols = append(result.Investor.FailSymbols, out.symbol)
		} else {
			result.Investor.Success++
			for _, flow := range out.flows {
				if flow.TradeDate.IsZero() {
					continue
				}
				result.flowRows = append(result.flowRows, flow)
				flowBatch = append(flowBatch, flow)
			}
		}

		if len(flowBatch) >= s.cfg.BatchSize {
			if err := s.flushFlows(flowBatch, result); err != nil {
				return err
			}
			flowBatch = flowBatch[:0]
		}

		if done%progressEvery == 0 || done == len(listings) {
			s.log.Info().
				Int("done", done).
				Int("total", len(listings)).
				Int("success", result.Investor.Success).
				Int("fail", result.Investor.Fail).
				Msg("Investor flow fetch progress")
		}
	}

	if len(flowBatch) > 0 {
		if err := s.flushFlows(flowBatch, result); err != nil {
			return err
		}
	}

	s.logPhase(result, "INVESTOR", window, result.Investor, phaseStart)
	return nil
}

// flushBars commits one OHLCV batch and its derived market-cap projection.
// Each flush is its own transaction: a crash mid-run leaves whole batches,
// and the next run's resolver continues from the last committed date.
func (s *Service) flushBars(batch []domain.PriceBar, result *RunResult) error {
	changed, total, err := s.prices.UpsertBars(batch)
	if err != nil {
		return err
	}
	result.OHLCV.addBatch(changed, total)

	changed, total, err = s.prices.UpsertMarketCaps(batch)
	if err != nil {
		return err
	}
	result.MarketCap.addBatch(changed, total)
	return nil
}

func (s *Service) flushFlows(batch []domain.InvestorFlow, result *RunResult) error {
	changed, total, err := s.investors.UpsertFlows(batch)
	if err != nil {
		return err
	}
	result.Investor.addBatch(changed, total)
	return nil
}

// logPhase records the audit row for one data kind. Log failures must not
// fail a run that already committed its data.
func (s *Service) logPhase(result *RunResult, dataType string, window Window, stats TableStats, startedAt time.Time) {
	status := StatusSuccess
	if stats.Fail > 0 {
		status = StatusPartial
	}
	entry := CollectionLog{
		RunID:            result.RunID,
		DataType:         dataType,
		CollectionDate:   window.End,
		Status:           status,
		RecordsCollected: stats.Rows,
		StartedAt:        startedAt,
		FinishedAt:       time.Now().In(s.cfg.Location),
	}
	if err := s.logs.Insert(entry); err != nil {
		s.log.Error().Err(err).Str("data_type", dataType).Msg("Failed to write collection log")
	}
}
