// backend/src/model/upload_history.go
package model

import (
	"database/sql"
	"fmt"
	"time"
)

// UploadRecord is one row of the uploads_history audit table. The table
// records what came through the upload endpoint, never the parsed
// operations themselves.
type UploadRecord struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	FileSize     int64     `json:"file_size"`
	TotalOps     int       `json:"total_ops"`
	TradeRows    int       `json:"trade_rows"`
	FinRows      int       `json:"fin_rows"`
	TransferRows int       `json:"transfer_rows"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordUpload inserts one audit row.
func RecordUpload(db *sql.DB, rec UploadRecord) error {
	_, err := db.Exec(`
		INSERT INTO uploads_history (filename, file_size, total_ops, trade_rows, fin_rows, transfer_rows, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Filename, rec.FileSize, rec.TotalOps, rec.TradeRows, rec.FinRows, rec.TransferRows, rec.DurationMs, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record upload in history: %w", err)
	}
	return nil
}

// RecentUploads returns the newest audit rows, most recent first.
func RecentUploads(db *sql.DB, limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, filename, file_size, total_ops, trade_rows, fin_rows, transfer_rows, duration_ms, error, created_at
		FROM uploads_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying uploads history: %w", err)
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		if err := rows.Scan(
			&rec.ID, &rec.Filename, &rec.FileSize, &rec.TotalOps, &rec.TradeRows,
			&rec.FinRows, &rec.TransferRows, &rec.DurationMs, &rec.Error, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning uploads history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads history rows: %w", err)
	}
	return records, nil
}
