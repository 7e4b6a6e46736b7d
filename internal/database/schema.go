package database

// schema mirrors the collection store: a read-mostly stock master, three
// time-partitioned series keyed by natural composite keys, plus run logs and
// quality check results. Dates are stored as ISO-8601 text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		stock_code    TEXT PRIMARY KEY,
		stock_name    TEXT NOT NULL,
		standard_code TEXT,
		market        TEXT NOT NULL,
		listing_date  TEXT,
		delisting_date TEXT,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS ohlcv_daily (
		time          TEXT NOT NULL,
		stock_code    TEXT NOT NULL,
		open_price    REAL,
		high_price    REAL,
		low_price     REAL,
		close_price   REAL,
		volume        INTEGER,
		trading_value REAL,
		created_at    TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (time, stock_code)
	)`,

	`CREATE TABLE IF NOT EXISTS market_cap_daily (
		time       TEXT NOT NULL,
		stock_code TEXT NOT NULL,
		market_cap REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (time, stock_code)
	)`,

	`CREATE TABLE IF NOT EXISTS investor_trading (
		time           TEXT NOT NULL,
		stock_code     TEXT NOT NULL,
		investor_type  TEXT NOT NULL,
		net_buy_value  REAL,
		net_buy_volume INTEGER,
		created_at     TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (time, stock_code, investor_type)
	)`,

	`CREATE TABLE IF NOT EXISTS data_collection_logs (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT NOT NULL,
		data_type         TEXT NOT NULL,
		collection_date   TEXT NOT NULL,
		status            TEXT NOT NULL,
		records_collected INTEGER NOT NULL DEFAULT 0,
		error_message     TEXT,
		started_at        TEXT NOT NULL,
		finished_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS data_quality_checks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name  TEXT NOT NULL,
		check_date  TEXT NOT NULL,
		check_type  TEXT NOT NULL,
		issue_count INTEGER NOT NULL,
		details     TEXT,
		created_at  TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ohlcv_code_time ON ohlcv_daily (stock_code, time)`,
	`CREATE INDEX IF NOT EXISTS idx_investor_code_time ON investor_trading (stock_code, time)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_logs_date ON data_collection_logs (collection_date)`,
}
