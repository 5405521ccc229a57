// Package audit provides access to the status_audit table recording
// device status transition history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakline/fleetcore/internal/device"
)

// Transition represents a single recorded status change.
type Transition struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which transitions to return.
type Filter struct {
	DeviceID  string // optional: filter by business device identifier
	NewStatus string // optional: filter by resulting status
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated transition results.
type ListResult struct {
	Transitions []Transition `json:"transitions"`
	Total       int          `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
}

// Repository defines the interface for transition log operations.
type Repository interface {
	Create(ctx context.Context, tr *Transition) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores transitions in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new transition log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new transition record. The ID and CreatedAt are
// generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, tr *Transition) error {
	if tr.ID == "" {
		tr.ID = "aud-" + uuid.NewString()[:8]
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO status_audit (id, device_id, old_status, new_status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.DeviceID, tr.OldStatus, tr.NewStatus,
		nullableString(tr.Reason),
		tr.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting status transition: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns transitions matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.NewStatus != "" {
		conditions = append(conditions, "new_status = ?")
		args = append(args, filter.NewStatus)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE is assembled from parameterised conditions only.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM status_audit %s", where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting status transitions: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT id, device_id, old_status, new_status, reason, created_at FROM status_audit %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying status transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var tr Transition
		var reason sql.NullString
		var createdAt string

		if err := rows.Scan(&tr.ID, &tr.DeviceID, &tr.OldStatus, &tr.NewStatus, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status transition: %w", err)
		}

		if reason.Valid {
			tr.Reason = reason.String
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing transition timestamp %q: %w", createdAt, err)
		}
		tr.CreatedAt = t

		transitions = append(transitions, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status transitions: %w", err)
	}

	if transitions == nil {
		transitions = []Transition{}
	}

	return &ListResult{
		Transitions: transitions,
		Total:       total,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}, nil
}

// Recorder adapts a Repository to the device package's audit sink.
type Recorder struct {
	repo Repository
}

// NewRecorder wraps a repository for use as a device audit sink.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record persists a device status transition.
func (r *Recorder) Record(ctx context.Context, e device.AuditEntry) error {
	return r.repo.Create(ctx, &Transition{
		DeviceID:  e.DeviceID,
		OldStatus: string(e.OldStatus),
		NewStatus: string(e.NewStatus),
		Reason:    e.Reason,
		CreatedAt: e.At,
	})
}
