package database

import "database/sql"

// UpsertSentiment stores a ticker's sentiment snapshot, replacing any
// previous one in full.
func (db *DB) UpsertSentiment(s *SentimentSnapshot) error {
	_, err := db.conn.Exec(
		`INSERT INTO ticker_sentiment (ticker, raw_score_sum, normalized_score,
		sentiment_label, signal, confidence, positive_count, negative_count,
		neutral_count, total_analyzed, total_pending, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(ticker) DO UPDATE SET
			raw_score_sum = excluded.raw_score_sum,
			normalized_score = excluded.normalized_score,
			sentiment_label = excluded.sentiment_label,
			signal = excluded.signal,
			confidence = excluded.confidence,
			positive_count = excluded.positive_count,
			negative_count = excluded.negative_count,
			neutral_count = excluded.neutral_count,
			total_analyzed = excluded.total_analyzed,
			total_pending = excluded.total_pending,
			updated_at = excluded.updated_at`,
		s.Ticker, s.RawScoreSum, s.NormalizedScore, s.SentimentLabel,
		s.Signal, s.Confidence, s.PositiveCount, s.NegativeCount,
		s.NeutralCount, s.TotalAnalyzed, s.TotalPending,
	)
	return err
}

// GetSentiment returns the stored snapshot for one ticker, or nil if the
// ticker has never been aggregated.
func (db *DB) GetSentiment(ticker string) (*SentimentSnapshot, error) {
	row := db.conn.QueryRow(
		`SELECT ticker, raw_score_sum, normalized_score, sentiment_label,
		signal, confidence, positive_count, negative_count, neutral_count,
		total_analyzed, total_pending, updated_at
		FROM ticker_sentiment WHERE ticker = ?`, ticker,
	)
	var s SentimentSnapshot
	err := row.Scan(&s.Ticker, &s.RawScoreSum, &s.NormalizedScore,
		&s.SentimentLabel, &s.Signal, &s.Confidence, &s.PositiveCount,
		&s.NegativeCount, &s.NeutralCount, &s.TotalAnalyzed, &s.TotalPending,
		&s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AllSentiments returns every stored snapshot, ordered by ticker.
func (db *DB) AllSentiments() ([]SentimentSnapshot, error) {
	rows, err := db.conn.Query(
		`SELECT ticker, raw_score_sum, normalized_score, sentiment_label,
		signal, confidence, positive_count, negative_count, neutral_count,
		total_analyzed, total_pending, updated_at
		FROM ticker_sentiment ORDER BY ticker`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []SentimentSnapshot
	for rows.Next() {
		var s SentimentSnapshot
		if err := rows.Scan(&s.Ticker, &s.RawScoreSum, &s.NormalizedScore,
			&s.SentimentLabel, &s.Signal, &s.Confidence, &s.PositiveCount,
			&s.NegativeCount, &s.NeutralCount, &s.TotalAnalyzed,
			&s.TotalPending, &s.UpdatedAt); err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	return all, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM tickers", &stats.Tickers},
		{"SELECT COUNT(*) FROM tickers WHERE is_active = 1", &stats.ActiveTickers},
		{"SELECT COUNT(*) FROM news", &stats.TotalNews},
		{"SELECT COUNT(*) FROM news WHERE status = 'pending'", &stats.PendingNews},
		{"SELECT COUNT(*) FROM news WHERE status = 'analyzed'", &stats.AnalyzedNews},
		{"SELECT COUNT(*) FROM ticker_sentiment", &stats.Snapshots},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return stats, nil
}
