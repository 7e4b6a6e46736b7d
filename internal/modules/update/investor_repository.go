package update

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
)

// InvestorRepository handles the investor_trading target.
type InvestorRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewInvestorRepository creates a new investor flow repository
func NewInvestorRepository(db *sql.DB, log zerolog.Logger) *InvestorRepository {
	return &InvestorRepository{
		db:  db,
		log: log.With().Str("repo", "investor").Logger(),
	}
}

// UpsertFlows writes one investor-flow batch keyed by
// (time, stock_code, investor_type), counting same-valued conflicts as
// skipped rather than writes.
func (r *InvestorRepository) UpsertFlows(flows []domain.InvestorFlow) (changed, total int, err error) {
	if len(flows) == 0 {
		return 0, 0, nil
	}

	placeholders := make([]string, 0, len(flows))
	args := make([]interface{}, 0, len(flows)*5)
	for _, f := range flows {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
		args = append(args,
			f.TradeDate.Format(dateLayout), f.Symbol, string(f.Category),
			f.NetBuyValue, f.NetBuyVolume,
		)
	}

	query := `
		INSERT INTO investor_trading
			(time, stock_code, investor_type, net_buy_value, net_buy_volume)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (time, stock_code, investor_type) DO UPDATE SET
			net_buy_value  = excluded.net_buy_value,
			net_buy_volume = excluded.net_buy_volume
		WHERE investor_trading.net_buy_value  IS NOT excluded.net_buy_value
		   OR investor_trading.net_buy_volume IS NOT excluded.net_buy_volume
	`

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert investor batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read investor rowcount: %w", err)
	}
	return int(affected), len(flows), nil
}
