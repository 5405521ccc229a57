package device

import "time"

// Device represents one tracked physical asset deployed at a bank branch:
// an ATM, a piece of network gear, a teller terminal, and so on.
// This matches the database schema in migrations/20260815_090000_initial_schema.up.sql.
type Device struct {
	// ID is the store-assigned surrogate key. Immutable once assigned.
	ID int64 `json:"id"`

	// DeviceID is the business-unique external identifier (e.g. asset tag).
	// Immutable after creation; uniqueness is enforced by the store at add time.
	DeviceID string `json:"device_id"`

	// Descriptive fields. DeviceName, DeviceType and Location are required
	// on creation; the rest are optional.
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	Vendor     string `json:"vendor,omitempty"`
	Model      string `json:"model,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Location   string `json:"location"`
	Branch     string `json:"branch,omitempty"`

	// Status is the canonical (upper-cased) operational state.
	Status Status `json:"status"`

	// Warranty coverage. The warranty end date is derived, never stored.
	InstallDate          time.Time `json:"install_date"`
	WarrantyPeriodMonths int       `json:"warranty_period_months"`

	// Timestamps are set by the service, not the caller.
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// WarrantyEndDate returns the date warranty coverage ends
// (install date plus the warranty period in months).
// The second return value is false when the device has no install date
// or no warranty period, in which case no end date is defined.
func (d *Device) WarrantyEndDate() (time.Time, bool) {
	if d.InstallDate.IsZero() || d.WarrantyPeriodMonths <= 0 {
		return time.Time{}, false
	}
	return d.InstallDate.AddDate(0, d.WarrantyPeriodMonths, 0), true
}

// Clone returns an independent copy of the device.
// Devices contain only value fields, so a shallow copy is sufficient,
// but callers should use Clone rather than rely on that detail.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// Patch describes a partial update to a device. Nil fields are left
// unchanged. DeviceID is carried only so the service can reject attempts
// to change it; it is never written.
type Patch struct {
	DeviceID             *string    `json:"device_id,omitempty"`
	DeviceName           *string    `json:"device_name,omitempty"`
	DeviceType           *string    `json:"device_type,omitempty"`
	Vendor               *string    `json:"vendor,omitempty"`
	Model                *string    `json:"model,omitempty"`
	IPAddress            *string    `json:"ip_address,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Branch               *string    `json:"branch,omitempty"`
	Status               *string    `json:"status,omitempty"`
	InstallDate          *time.Time `json:"install_date,omitempty"`
	WarrantyPeriodMonths *int       `json:"warranty_period_months,omitempty"`
}

// IsEmpty reports whether the patch carries no updatable fields.
// A patch holding only DeviceID is empty: DeviceID is never written.
func (p Patch) IsEmpty() bool {
	return p.DeviceName == nil && p.DeviceType == nil && p.Vendor == nil &&
		p.Model == nil && p.IPAddress == nil && p.Location == nil &&
		p.Branch == nil && p.Status == nil && p.InstallDate == nil &&
		p.WarrantyPeriodMonths == nil
}

// Status represents the operational state of a device.
type Status string

// Status constants. These are the only legal values; all lookups and
// writes use the canonical upper-cased form.
const (
	StatusOffline        Status = "OFFLINE"
	StatusOnline         Status = "ONLINE"
	StatusFault          Status = "FAULT"
	StatusMaintenance    Status = "MAINTENANCE"
	StatusDecommissioned Status = "DECOMMISSIONED"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{
		StatusOffline, StatusOnline, StatusFault,
		StatusMaintenance, StatusDecommissioned,
	}
}
