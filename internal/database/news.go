package database

import (
	"database/sql"
)

const newsColumns = `id, ticker, title, summary, url, source, source_type,
	published_at, relevance_score, engagement_score, author, content,
	content_fetched, status, sentiment_label, justification, fetched_at, analyzed_at`

// InsertNews stores one news record. Returns the ID on success, 0 if a
// record with the same URL already exists. Records without a URL are
// never treated as duplicates here.
func (db *DB) InsertNews(n *NewsItem) (int64, error) {
	status := n.Status
	if status == "" {
		status = StatusPending
	}
	result, err := db.conn.Exec(
		`INSERT INTO news (ticker, title, summary, url, source, source_type,
		published_at, relevance_score, engagement_score, author, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Ticker, n.Title, n.Summary, n.URL, n.Source, n.SourceType,
		n.PublishedAt, n.RelevanceScore, n.EngagementScore, n.Author, status,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetNewsByID returns a single news record by ID.
func (db *DB) GetNewsByID(id int64) (*NewsItem, error) {
	row := db.conn.QueryRow(
		"SELECT "+newsColumns+" FROM news WHERE id = ?", id,
	)
	n, err := scanNewsRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetPendingNews returns up to limit items awaiting analysis, oldest
// fetched first.
func (db *DB) GetPendingNews(limit int) ([]NewsItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+newsColumns+" FROM news WHERE status = ? ORDER BY fetched_at, id LIMIT ?",
		StatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// CountPendingNews counts pending items for one ticker.
func (db *DB) CountPendingNews(ticker string) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM news WHERE ticker = ? AND status = ?",
		ticker, StatusPending,
	).Scan(&count)
	return count, err
}

// GetAnalyzedWithSentiment returns all analyzed items for a ticker that
// carry a sentiment label.
func (db *DB) GetAnalyzedWithSentiment(ticker string) ([]NewsItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+newsColumns+` FROM news
		WHERE ticker = ? AND status = ? AND sentiment_label IS NOT NULL
		ORDER BY analyzed_at, id`,
		ticker, StatusAnalyzed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// GetNewsForTicker returns the most recently fetched items for a ticker.
func (db *DB) GetNewsForTicker(ticker string, limit int) ([]NewsItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+newsColumns+" FROM news WHERE ticker = ? ORDER BY fetched_at DESC, id DESC LIMIT ?",
		ticker, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// UpdateNewsAnalysis records a classification outcome and marks the item
// analyzed.
func (db *DB) UpdateNewsAnalysis(id int64, label, justification string) error {
	_, err := db.conn.Exec(
		`UPDATE news SET status = ?, sentiment_label = ?, justification = ?,
		analyzed_at = datetime('now') WHERE id = ?`,
		StatusAnalyzed, label, justification, id,
	)
	return err
}

// GetNewsNeedingContent returns pending items with a URL whose summary is
// too thin to classify and whose content has not been fetched yet.
func (db *DB) GetNewsNeedingContent(limit int) ([]NewsItem, error) {
	rows, err := db.conn.Query(
		"SELECT "+newsColumns+` FROM news
		WHERE status = ? AND url IS NOT NULL AND content_fetched = 0
		AND (content IS NULL OR content = '')
		AND (summary IS NULL OR length(summary) < 200)
		ORDER BY fetched_at, id LIMIT ?`,
		StatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// UpdateNewsContent stores extracted article text after fetching.
func (db *DB) UpdateNewsContent(id int64, content *string) error {
	_, err := db.conn.Exec(
		"UPDATE news SET content = ?, content_fetched = 1 WHERE id = ?",
		content, id,
	)
	return err
}

// MarkNewsFetchAttempted marks that we tried to fetch content.
func (db *DB) MarkNewsFetchAttempted(id int64) error {
	_, err := db.conn.Exec(
		"UPDATE news SET content_fetched = 1 WHERE id = ?", id,
	)
	return err
}

func scanNews(rows *sql.Rows) ([]NewsItem, error) {
	var items []NewsItem
	for rows.Next() {
		var n NewsItem
		var fetched int
		if err := rows.Scan(&n.ID, &n.Ticker, &n.Title, &n.Summary, &n.URL,
			&n.Source, &n.SourceType, &n.PublishedAt, &n.RelevanceScore,
			&n.EngagementScore, &n.Author, &n.Content, &fetched, &n.Status,
			&n.SentimentLabel, &n.Justification, &n.FetchedAt, &n.AnalyzedAt); err != nil {
			return nil, err
		}
		n.ContentFetched = fetched != 0
		items = append(items, n)
	}
	return items, rows.Err()
}

func scanNewsRow(row *sql.Row) (*NewsItem, error) {
	var n NewsItem
	var fetched int
	if err := row.Scan(&n.ID, &n.Ticker, &n.Title, &n.Summary, &n.URL,
		&n.Source, &n.SourceType, &n.PublishedAt, &n.RelevanceScore,
		&n.EngagementScore, &n.Author, &n.Content, &fetched, &n.Status,
		&n.SentimentLabel, &n.Justification, &n.FetchedAt, &n.AnalyzedAt); err != nil {
		return nil, err
	}
	n.ContentFetched = fetched != 0
	return &n, nil
}
