package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Service.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// lockStripes is the number of mutexes the per-device lock table is
// spread across. Contention is per-device, so a small fixed table is
// plenty for a branch fleet.
const lockStripes = 32

// defaultWarrantyLookaheadDays is the warranty alert window when none
// is configured: devices whose coverage ends within the next 30 days
// (inclusive) are flagged.
const defaultWarrantyLookaheadDays = 30

// Service is the device lifecycle service. It enforces validation and
// status state machine rules on top of a Store, records every status
// transition through the AuditSink, and raises fault notifications
// through the NotificationSink.
//
// Read-modify-write operations (status change, fault marking, update,
// delete) are serialized per device ID so that concurrent callers cannot
// interleave their guard checks and writes. Two concurrent MarkAsFault
// calls on the same device fire exactly one notification.
//
// All public methods are thread-safe.
type Service struct {
	store  Store
	faults FaultRecordSource
	audit  AuditSink
	notify NotificationSink
	logger Logger

	// now is the clock; replaceable in tests.
	now func() time.Time

	// idLocks serializes mutations per device ID (striped by ID).
	idLocks [lockStripes]sync.Mutex

	warrantyLookaheadDays int
}

// NewService creates a device lifecycle service.
//
// The store is required. The fault source may be nil if fault analysis is
// not used; audit and notification sinks may be nil, in which case
// transitions are not recorded and alerts are dropped.
func NewService(store Store, faults FaultRecordSource, audit AuditSink, notify NotificationSink) *Service {
	if audit == nil {
		audit = noopAuditSink{}
	}
	if notify == nil {
		notify = noopNotificationSink{}
	}
	return &Service{
		store:                 store,
		faults:                faults,
		audit:                 audit,
		notify:                notify,
		logger:                noopLogger{},
		now:                   time.Now,
		warrantyLookaheadDays: defaultWarrantyLookaheadDays,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetWarrantyLookahead overrides the warranty alert window in days.
// Non-positive values are ignored.
func (s *Service) SetWarrantyLookahead(days int) {
	if days > 0 {
		s.warrantyLookaheadDays = days
	}
}

// lock acquires the mutation lock for a device ID.
func (s *Service) lock(id int64) *sync.Mutex {
	mu := &s.idLocks[uint64(id)%lockStripes]
	mu.Lock()
	return mu
}

// AddDevice validates and persists a new device record.
//
// Required fields are DeviceID, DeviceName, DeviceType and Location; an
// unset status defaults to OFFLINE and any status is canonicalized to
// upper case. Returns ErrValidation on bad input and ErrConflict if a
// device with the same DeviceID already exists. On success the device's
// surrogate ID and timestamps are filled in.
func (s *Service) AddDevice(ctx context.Context, d *Device) error {
	if err := ValidateForCreate(d); err != nil {
		return err
	}

	now := s.now().UTC()
	d.CreateTime = now
	d.UpdateTime = now

	// Uniqueness of DeviceID is enforced by the store's unique constraint,
	// which keeps the existence check and the insert atomic.
	if err := s.store.Insert(ctx, d); err != nil {
		return err
	}

	s.logger.Info("device added", "id", d.ID, "device_id", d.DeviceID, "status", string(d.Status))
	return nil
}

// GetDevice retrieves a device by its surrogate key.
// Returns ErrNotFound if the device does not exist.
func (s *Service) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return s.store.SelectByID(ctx, id)
}

// GetDeviceByDeviceID retrieves a device by its business identifier.
// Returns ErrValidation for an empty identifier and ErrNotFound if no
// device carries it.
func (s *Service) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	return s.store.SelectByDeviceID(ctx, deviceID)
}

// ListDevices retrieves all devices, most recently updated first.
func (s *Service) ListDevices(ctx context.Context) ([]Device, error) {
	return s.store.SelectAll(ctx)
}

// ListByStatus retrieves all devices in the given status.
// The status is canonicalized first; an empty status yields an empty list.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]Device, error) {
	if strings.TrimSpace(status) == "" {
		return []Device{}, nil
	}
	canonical, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.SelectByStatus(ctx, canonical)
}

// ListByBranch retrieves all devices whose branch contains the given
// pattern. An empty pattern yields an empty list.
func (s *Service) ListByBranch(ctx context.Context, branch string) ([]Device, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return []Device{}, nil
	}
	return s.store.SelectByBranch(ctx, branch)
}

// SearchDevices filters the full device set by the given query.
// See Search for the matching rules.
func (s *Service) SearchDevices(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	devices, err := s.store.SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	result := Search(devices, q)
	return &result, nil
}

// ChangeStatus transitions a device to a new status.
//
// Any status may follow any other; there is no transition table. The new
// status is validated against the enumeration (case-insensitively) and
// canonicalized. The transition is recorded through the audit sink before
// success is reported; an audit failure fails the change.
//
// Returns ErrNotFound if the device is absent, ErrValidation for an
// unknown status, and ErrStore if the write did not affect exactly one row.
func (s *Service) ChangeStatus(ctx context.Context, id int64, newStatus, reason string) error {
	mu := s.lock(id)
	defer mu.Unlock()
	return s.changeStatusLocked(ctx, id, newStatus, reason)
}

// changeStatusLocked is ChangeStatus without lock acquisition.
// The caller must hold the device's mutation lock.
func (s *Service) changeStatusLocked(ctx context.Context, id int64, newStatus, reason string) error {
	d, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return err
	}

	canonical, err := ParseStatus(newStatus)
	if err != nil {
		return err
	}

	affected, err := s.store.UpdateStatus(ctx, id, canonical)
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("%w: status update affected %d rows", ErrStore, affected)
	}

	// The audit record must be durable before the change is reported
	// as successful.
	entry := AuditEntry{
		DeviceID:  d.DeviceID,
		OldStatus: d.Status,
		NewStatus: canonical,
		Reason:    reason,
		At:        s.now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("recording status audit: %w", err)
	}

	s.logger.Info("device status changed",
		"device_id", d.DeviceID,
		"old_status", string(d.Status),
		"new_status", string(canonical),
		"reason", reason,
	)
	return nil
}

// MarkAsFault transitions a device to FAULT and raises a fault
// notification.
//
// A non-empty reason is required. Marking a device that is already FAULT
// is a policy no-op: it returns (false, nil) without writing, auditing or
// notifying. On a real transition exactly one notification is sent,
// fire-and-forget.
func (s *Service) MarkAsFault(ctx context.Context, id int64, reason string) (bool, error) {
	if strings.TrimSpace(reason) == "" {
		return false, fmt.Errorf("%w: fault reason is required", ErrValidation)
	}

	mu := s.lock(id)
	defer mu.Unlock()

	d, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return false, err
	}

	if d.Status == StatusFault {
		s.logger.Info("device already faulted, skipping", "device_id", d.DeviceID)
		return false, nil
	}

	if err := s.changeStatusLocked(ctx, id, string(StatusFault), reason); err != nil {
		return false, err
	}

	// Notification failure must not fail the fault marking; the sink
	// logs its own errors.
	s.notify.NotifyFault(ctx, *d, reason, s.now().UTC())

	s.logger.Info("device marked as fault",
		"device_id", d.DeviceID,
		"prior_status", string(d.Status),
		"reason", reason,
	)
	return true, nil
}

// UpdateDevice applies a partial update to a device's descriptive fields.
//
// Returns ErrNotFound if the device is absent and ErrConflict if the patch
// attempts to change the immutable DeviceID. Only non-nil patch fields are
// applied; UpdateTime is always refreshed. The refreshed record is returned.
func (s *Service) UpdateDevice(ctx context.Context, id int64, patch Patch) (*Device, error) {
	mu := s.lock(id)
	defer mu.Unlock()

	existing, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.DeviceID != nil && *patch.DeviceID != existing.DeviceID {
		return nil, fmt.Errorf("%w: device_id is immutable", ErrConflict)
	}

	if patch.Status != nil {
		canonical, err := ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		status := string(canonical)
		patch.Status = &status
	}

	affected, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if affected != 1 {
		return nil, fmt.Errorf("%w: update affected %d rows", ErrStore, affected)
	}

	updated, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("device updated", "id", id, "device_id", updated.DeviceID)
	return updated, nil
}

// DeleteDevice removes a device.
//
// Returns ErrNotFound if the device is absent and ErrConflict if it is
// still ONLINE; online devices must be taken offline before removal.
func (s *Service) DeleteDevice(ctx context.Context, id int64) error {
	mu := s.lock(id)
	defer mu.Unlock()

	d, err := s.store.SelectByID(ctx, id)
	if err != nil {
		return err
	}

	if d.Status == StatusOnline {
		return fmt.Errorf("%w: online device cannot be deleted, take it offline first", ErrConflict)
	}

	affected, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("%w: delete affected %d rows", ErrStore, affected)
	}

	s.logger.Info("device deleted", "id", id, "device_id", d.DeviceID)
	return nil
}
