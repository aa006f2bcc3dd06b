package journal

const Schema = `
CREATE TABLE IF NOT EXISTS settlements (
	position_id INTEGER PRIMARY KEY,
	trader TEXT NOT NULL,
	asset TEXT NOT NULL,
	direction TEXT NOT NULL,
	amount INTEGER NOT NULL,
	entry_price INTEGER NOT NULL,
	exit_price INTEGER NOT NULL,
	pnl INTEGER NOT NULL,
	settlement INTEGER NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_close_time ON settlements(close_time);
CREATE INDEX IF NOT EXISTS idx_settlements_trader ON settlements(trader);

CREATE TABLE IF NOT EXISTS balances (
	time DATETIME NOT NULL,
	trader TEXT NOT NULL,
	deposit INTEGER NOT NULL,
	quote INTEGER NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_balances_time ON balances(time);
`
