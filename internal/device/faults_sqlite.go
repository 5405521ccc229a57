package device

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteFaultSource reads aggregated fault history from the fault_records
// table. Rows are written by external ingestion, the service only reads.
type SQLiteFaultSource struct {
	db *sql.DB
}

// NewSQLiteFaultSource creates a fault record source over an open SQLite
// connection.
func NewSQLiteFaultSource(db *sql.DB) *SQLiteFaultSource {
	return &SQLiteFaultSource{db: db}
}

// FaultRecordsByCode returns per-code fault counts and average repair times,
// most frequent codes first.
func (s *SQLiteFaultSource) FaultRecordsByCode(ctx context.Context) ([]FaultCodeStats, error) {
	query := `
		SELECT fault_code,
			COUNT(*),
			COALESCE(AVG(downtime_minutes), 0)
		FROM fault_records
		GROUP BY fault_code
		ORDER BY COUNT(*) DESC, fault_code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying fault records: %w", err)
	}
	defer rows.Close()

	var stats []FaultCodeStats
	for rows.Next() {
		var fs FaultCodeStats
		if err := rows.Scan(&fs.FaultCode, &fs.FaultCount, &fs.AvgFixTimeMinutes); err != nil {
			return nil, fmt.Errorf("scanning fault record stats: %w", err)
		}
		stats = append(stats, fs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fault record stats: %w", err)
	}
	return stats, nil
}
