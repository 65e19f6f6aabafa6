package database

import (
	"database/sql"
	"strings"
)

// InsertTicker adds a symbol to the watchlist. Returns the ID on
// success, 0 if the symbol is already watched.
func (db *DB) InsertTicker(symbol string, name *string) (int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	result, err := db.conn.Exec(
		"INSERT INTO tickers (symbol, name) VALUES (?, ?)", symbol, name,
	)
	if err != nil {
		// Duplicate symbol constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetTicker returns one watchlist entry, or nil if the symbol is not
// watched.
func (db *DB) GetTicker(symbol string) (*Ticker, error) {
	row := db.conn.QueryRow(
		"SELECT id, symbol, name, is_active, created_at FROM tickers WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)
	t, err := scanTicker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTickers returns the full watchlist ordered by symbol.
func (db *DB) ListTickers() ([]Ticker, error) {
	rows, err := db.conn.Query(
		"SELECT id, symbol, name, is_active, created_at FROM tickers ORDER BY symbol",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []Ticker
	for rows.Next() {
		var t Ticker
		var active int
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &active, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.IsActive = active != 0
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// ActiveTickerSymbols returns the symbols of all active watchlist
// entries, ordered by symbol.
func (db *DB) ActiveTickerSymbols() ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT symbol FROM tickers WHERE is_active = 1 ORDER BY symbol",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// SetTickerActive toggles whether a symbol participates in fetch runs.
func (db *DB) SetTickerActive(symbol string, active bool) error {
	val := 0
	if active {
		val = 1
	}
	_, err := db.conn.Exec(
		"UPDATE tickers SET is_active = ? WHERE symbol = ?",
		val, strings.ToUpper(strings.TrimSpace(symbol)),
	)
	return err
}

// RemoveTicker deletes a symbol from the watchlist.
func (db *DB) RemoveTicker(symbol string) error {
	_, err := db.conn.Exec(
		"DELETE FROM tickers WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)
	return err
}

func scanTicker(row *sql.Row) (*Ticker, error) {
	var t Ticker
	var active int
	if err := row.Scan(&t.ID, &t.Symbol, &t.Name, &active, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	return &t, nil
}
