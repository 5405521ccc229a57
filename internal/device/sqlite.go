package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// deviceColumns is the column list shared by all device SELECTs.
const deviceColumns = `id, device_id, device_name, device_type, vendor, model,
	ip_address, location, branch, status, install_date,
	warranty_period_months, create_time, update_time`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed device store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert persists a new device and fills in its surrogate ID.
func (s *SQLiteStore) Insert(ctx context.Context, d *Device) error {
	query := `
		INSERT INTO devices (
			device_id, device_name, device_type, vendor, model,
			ip_address, location, branch, status, install_date,
			warranty_period_months, create_time, update_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		d.DeviceID,
		d.DeviceName,
		d.DeviceType,
		nullableString(d.Vendor),
		nullableString(d.Model),
		nullableString(d.IPAddress),
		d.Location,
		nullableString(d.Branch),
		string(d.Status),
		nullableTime(d.InstallDate),
		d.WarrantyPeriodMonths,
		d.CreateTime.UTC().Format(time.RFC3339),
		d.UpdateTime.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: device_id %q already exists", ErrConflict, d.DeviceID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted device id: %w", err)
	}
	d.ID = id

	return nil
}

// SelectAll retrieves all devices, most recently updated first.
func (s *SQLiteStore) SelectAll(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		ORDER BY update_time DESC, id DESC`

	return s.queryDevices(ctx, query)
}

// SelectByID retrieves a device by its surrogate key.
func (s *SQLiteStore) SelectByID(ctx context.Context, id int64) (*Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// SelectByDeviceID retrieves a device by its business identifier.
func (s *SQLiteStore) SelectByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE device_id = ?`

	row := s.db.QueryRowContext(ctx, query, deviceID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: device_id %q", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("querying device by device_id: %w", err)
	}
	return d, nil
}

// SelectByStatus retrieves all devices in a given canonical status.
func (s *SQLiteStore) SelectByStatus(ctx context.Context, status Status) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE status = ?
		ORDER BY update_time DESC, id DESC`

	return s.queryDevices(ctx, query, string(status))
}

// SelectByBranch retrieves all devices whose branch contains the pattern,
// case-insensitively.
func (s *SQLiteStore) SelectByBranch(ctx context.Context, pattern string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE branch LIKE ? ESCAPE '\'
		ORDER BY update_time DESC, id DESC`

	return s.queryDevices(ctx, query, "%"+escapeLike(pattern)+"%")
}

// Update applies the non-nil fields of patch and refreshes update_time.
// The SET clause is assembled dynamically from the patch fields.
func (s *SQLiteStore) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	var sets []string
	var args []any

	appendSet := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.DeviceName != nil {
		appendSet("device_name", *patch.DeviceName)
	}
	if patch.DeviceType != nil {
		appendSet("device_type", *patch.DeviceType)
	}
	if patch.Vendor != nil {
		appendSet("vendor", nullableString(*patch.Vendor))
	}
	if patch.Model != nil {
		appendSet("model", nullableString(*patch.Model))
	}
	if patch.IPAddress != nil {
		appendSet("ip_address", nullableString(*patch.IPAddress))
	}
	if patch.Location != nil {
		appendSet("location", *patch.Location)
	}
	if patch.Branch != nil {
		appendSet("branch", nullableString(*patch.Branch))
	}
	if patch.Status != nil {
		appendSet("status", *patch.Status)
	}
	if patch.InstallDate != nil {
		appendSet("install_date", nullableTime(*patch.InstallDate))
	}
	if patch.WarrantyPeriodMonths != nil {
		appendSet("warranty_period_months", *patch.WarrantyPeriodMonths)
	}

	// update_time is always refreshed, even for an otherwise empty patch.
	appendSet("update_time", time.Now().UTC().Format(time.RFC3339))

	query := "UPDATE devices SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("updating device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// UpdateStatus writes a new canonical status and refreshes update_time.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status Status) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, update_time = ? WHERE id = ?",
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("updating device status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// DeleteByID removes a device.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("deleting device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// CountAll returns the total number of devices.
func (s *SQLiteStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// CountByStatus returns the device count grouped by status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM devices GROUP BY status ORDER BY status",
	)
	if err != nil {
		return nil, fmt.Errorf("counting devices by status: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		sc.Status = Status(status)
		counts = append(counts, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}
	return counts, nil
}

// CountByBranch returns per-branch total and online device counts.
// Devices without a branch are grouped under the empty string.
func (s *SQLiteStore) CountByBranch(ctx context.Context) ([]BranchCount, error) {
	query := `
		SELECT COALESCE(branch, ''),
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM devices
		GROUP BY COALESCE(branch, '')
		ORDER BY COALESCE(branch, '')`

	rows, err := s.db.QueryContext(ctx, query, string(StatusOnline))
	if err != nil {
		return nil, fmt.Errorf("counting devices by branch: %w", err)
	}
	defer rows.Close()

	var counts []BranchCount
	for rows.Next() {
		var bc BranchCount
		if err := rows.Scan(&bc.Branch, &bc.Total, &bc.Online); err != nil {
			return nil, fmt.Errorf("scanning branch count: %w", err)
		}
		counts = append(counts, bc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating branch counts: %w", err)
	}
	return counts, nil
}

// queryDevices executes a query and returns a slice of devices.
func (s *SQLiteStore) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var vendor, model, ipAddress, branch sql.NullString
	var installDate sql.NullString
	var status string
	var createTime, updateTime string

	err := scanner.Scan(
		&d.ID,
		&d.DeviceID,
		&d.DeviceName,
		&d.DeviceType,
		&vendor,
		&model,
		&ipAddress,
		&d.Location,
		&branch,
		&status,
		&installDate,
		&d.WarrantyPeriodMonths,
		&createTime,
		&updateTime,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	d.Vendor = vendor.String
	d.Model = model.String
	d.IPAddress = ipAddress.String
	d.Branch = branch.String

	if installDate.Valid && installDate.String != "" {
		t, err := time.Parse(time.RFC3339, installDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing install_date: %w", err)
		}
		d.InstallDate = t
	}

	d.CreateTime, err = time.Parse(time.RFC3339, createTime)
	if err != nil {
		return nil, fmt.Errorf("parsing create_time: %w", err)
	}
	d.UpdateTime, err = time.Parse(time.RFC3339, updateTime)
	if err != nil {
		return nil, fmt.Errorf("parsing update_time: %w", err)
	}

	return &d, nil
}

// nullableString returns a sql.NullString storing NULL for empty strings.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime returns a sql.NullString storing NULL for zero times
// (as RFC3339 strings otherwise).
func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// escapeLike escapes LIKE metacharacters in a user-supplied pattern.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
