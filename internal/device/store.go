package device

import (
	"context"
	"time"
)

// Store defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Count results are normalized to int64 at this boundary so the
// aggregation code never has to deal with driver-specific numeric types.
type Store interface {
	// Insert persists a new device and assigns its surrogate ID.
	// Returns ErrConflict if a device with the same DeviceID already exists.
	Insert(ctx context.Context, d *Device) error

	// SelectAll retrieves all devices, most recently updated first.
	SelectAll(ctx context.Context) ([]Device, error)

	// SelectByID retrieves a device by its surrogate key.
	// Returns ErrNotFound if the device does not exist.
	SelectByID(ctx context.Context, id int64) (*Device, error)

	// SelectByDeviceID retrieves a device by its business identifier.
	// Returns ErrNotFound if the device does not exist.
	SelectByDeviceID(ctx context.Context, deviceID string) (*Device, error)

	// SelectByStatus retrieves all devices in a given canonical status.
	SelectByStatus(ctx context.Context, status Status) ([]Device, error)

	// SelectByBranch retrieves all devices whose branch contains the
	// given pattern (case-insensitive substring match).
	SelectByBranch(ctx context.Context, pattern string) ([]Device, error)

	// Update applies the non-nil fields of patch to the device and
	// refreshes its update time. Returns the number of rows affected.
	Update(ctx context.Context, id int64, patch Patch) (int64, error)

	// UpdateStatus writes a new canonical status for the device and
	// refreshes its update time. Returns the number of rows affected.
	UpdateStatus(ctx context.Context, id int64, status Status) (int64, error)

	// DeleteByID removes a device. Returns the number of rows affected.
	DeleteByID(ctx context.Context, id int64) (int64, error)

	// CountAll returns the total number of devices.
	CountAll(ctx context.Context) (int64, error)

	// CountByStatus returns the device count grouped by status.
	CountByStatus(ctx context.Context) ([]StatusCount, error)

	// CountByBranch returns per-branch total and online device counts.
	CountByBranch(ctx context.Context) ([]BranchCount, error)
}

// StatusCount is one row of the store's grouped status count.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// BranchCount is one row of the store's grouped branch health count.
type BranchCount struct {
	Branch string `json:"branch"`
	Total  int64  `json:"total"`
	Online int64  `json:"online"`
}

// FaultCodeStats is the aggregated fault history for a single fault code,
// as produced by the fault record source.
type FaultCodeStats struct {
	FaultCode         string  `json:"fault_code"`
	FaultCount        int64   `json:"fault_count"`
	AvgFixTimeMinutes float64 `json:"avg_fix_time_minutes"`
}

// FaultRecordSource provides read-only access to aggregated fault records.
// The core never mutates fault data.
type FaultRecordSource interface {
	// FaultRecordsByCode returns fault counts and average downtime
	// grouped by fault code. Codes with no downtime values report an
	// average of zero.
	FaultRecordsByCode(ctx context.Context) ([]FaultCodeStats, error)
}

// AuditEntry records a single status transition for the audit trail.
// Reason may be empty; it is recorded as given.
type AuditEntry struct {
	DeviceID  string    `json:"device_id"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// AuditSink durably records status transitions. It is called synchronously
// before a status change reports success; a sink error fails the change.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NotificationSink receives fault alerts. Delivery is fire-and-forget:
// implementations should log failures, and the service never lets a
// notification failure fail the operation that triggered it.
//
// The device snapshot is taken before the transition, so d.Status is the
// status the device had prior to being marked FAULT.
type NotificationSink interface {
	NotifyFault(ctx context.Context, d Device, reason string, at time.Time)
}

// noopAuditSink discards audit entries. Used when no sink is configured.
type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, AuditEntry) error { return nil }

// noopNotificationSink discards fault notifications.
type noopNotificationSink struct{}

func (noopNotificationSink) NotifyFault(context.Context, Device, string, time.Time) {}
