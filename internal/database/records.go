package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"newscurator/internal/news"
)

// InsertRecord stores a collected record. Returns false for duplicates,
// detected by the unique link constraint.
func (db *DB) InsertRecord(rec *news.Record) (bool, error) {
	var citations []byte
	if len(rec.Citations) > 0 {
		var err error
		citations, err = json.Marshal(rec.Citations)
		if err != nil {
			return false, fmt.Errorf("encoding citations: %w", err)
		}
	}

	var published string
	if !rec.PublishedAt.IsZero() {
		published = rec.PublishedAt.UTC().Format(time.RFC3339)
	}

	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO records (id, title, summary, body, link, source, published_at, citations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Summary, rec.Body, rec.Link, rec.Source,
		published, string(citations),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateRecordBody stores fetched full text for a record.
func (db *DB) UpdateRecordBody(id, body string) error {
	_, err := db.conn.Exec("UPDATE records SET body = ? WHERE id = ?", body, id)
	return err
}

// GetRecentRecords returns records published within the last `days` days,
// newest first, with at most maxPerSource per source. maxPerSource <= 0
// means no cap.
func (db *DB) GetRecentRecords(days, maxPerSource int) ([]*news.Record, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)
	rows, err := db.conn.Query(
		`SELECT id, title, summary, body, link, source, published_at, citations
		FROM records WHERE published_at >= ? ORDER BY published_at DESC`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perSource := make(map[string]int)
	var records []*news.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if maxPerSource > 0 {
			if perSource[rec.Source] >= maxPerSource {
				continue
			}
			perSource[rec.Source]++
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecordsNeedingBody returns records whose body is empty, newest first.
func (db *DB) GetRecordsNeedingBody(days int) ([]*news.Record, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)
	rows, err := db.conn.Query(
		`SELECT id, title, summary, body, link, source, published_at, citations
		FROM records WHERE (body IS NULL OR body = '') AND published_at >= ?
		ORDER BY published_at DESC`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*news.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (*news.Record, error) {
	var rec news.Record
	var published, citations sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Title, &rec.Summary, &rec.Body,
		&rec.Link, &rec.Source, &published, &citations); err != nil {
		return nil, err
	}
	if published.String != "" {
		if t, err := time.Parse(time.RFC3339, published.String); err == nil {
			rec.PublishedAt = t
		}
	}
	if citations.String != "" {
		// Malformed stored citations are dropped rather than failing the read.
		_ = json.Unmarshal([]byte(citations.String), &rec.Citations)
	}
	return &rec, nil
}
