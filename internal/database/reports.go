package database

import "database/sql"

// InsertReport stores a finished report for a curation run.
func (db *DB) InsertReport(runID, bodyMarkdown string, qualityPassed bool, recordCount, eventCount int) (int64, error) {
	passed := 0
	if qualityPassed {
		passed = 1
	}
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO reports (run_id, body_markdown, quality_passed, record_count, event_count)
		VALUES (?, ?, ?, ?, ?)`,
		runID, bodyMarkdown, passed, recordCount, eventCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns the report for a run, or nil if none exists.
func (db *DB) GetReport(runID string) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, run_id, body_markdown, quality_passed, record_count, event_count, generated_at
		FROM reports WHERE run_id = ?`, runID,
	)
	return scanReport(row)
}

// GetLatestReport returns the most recently generated report, or nil.
func (db *DB) GetLatestReport() (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, run_id, body_markdown, quality_passed, record_count, event_count, generated_at
		FROM reports ORDER BY generated_at DESC, id DESC LIMIT 1`,
	)
	return scanReport(row)
}

// GetAllReports returns all reports, newest first.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, body_markdown, quality_passed, record_count, event_count, generated_at
		FROM reports ORDER BY generated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var passed int
		if err := rows.Scan(&r.ID, &r.RunID, &r.BodyMarkdown, &passed,
			&r.RecordCount, &r.EventCount, &r.GeneratedAt); err != nil {
			return nil, err
		}
		r.QualityPassed = passed != 0
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanReport(row *sql.Row) (*Report, error) {
	var r Report
	var passed int
	if err := row.Scan(&r.ID, &r.RunID, &r.BodyMarkdown, &passed,
		&r.RecordCount, &r.EventCount, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.QualityPassed = passed != 0
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM records", &s.TotalRecords},
		{"SELECT COUNT(DISTINCT source) FROM records", &s.Sources},
		{"SELECT COUNT(*) FROM records WHERE body IS NOT NULL AND body != ''", &s.RecordsWithBody},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
