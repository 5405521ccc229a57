package device

import (
	"fmt"
	"strings"
)

// validStatuses is a pre-computed set for O(1) membership checks.
var validStatuses map[Status]struct{}

func init() {
	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ValidateForCreate checks that a new device record is well-formed and
// normalizes it for storage.
//
// It fails with ErrValidation if DeviceID, DeviceName, DeviceType or
// Location is empty. As a side effect it defaults an unset status to
// OFFLINE and canonicalizes the status to upper case. It deliberately
// does NOT check DeviceID uniqueness; that is the store's concern.
func ValidateForCreate(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrValidation)
	}
	if strings.TrimSpace(d.DeviceID) == "" {
		return fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	if strings.TrimSpace(d.DeviceName) == "" {
		return fmt.Errorf("%w: device_name is required", ErrValidation)
	}
	if strings.TrimSpace(d.DeviceType) == "" {
		return fmt.Errorf("%w: device_type is required", ErrValidation)
	}
	if strings.TrimSpace(d.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}

	if d.Status == "" {
		d.Status = StatusOffline
	}
	status, err := ParseStatus(string(d.Status))
	if err != nil {
		return err
	}
	d.Status = status

	return nil
}

// ParseStatus canonicalizes a status value to its upper-cased form and
// validates it against the status enumeration. Matching is
// case-insensitive, so "online" and "ONLINE" both yield StatusOnline.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := validStatuses[status]; !ok {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, raw)
	}
	return status, nil
}
