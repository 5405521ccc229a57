// Package device provides the device fleet registry for FleetCore.
//
// The fleet registry is the catalogue of all hardware devices deployed
// across bank branches: ATMs, card issuers, queue kiosks, cameras and the
// rest. It manages device lifecycle, enforces the status state machine,
// and derives fleet-level statistics for operations dashboards.
//
// # Key Types
//
//   - Device: a single deployed unit, identified by a unique business
//     device_id alongside its surrogate database key
//   - Status: canonical lifecycle state (ONLINE, OFFLINE, FAULT,
//     MAINTENANCE, DECOMMISSIONED)
//   - Service: the business-rule layer; all mutations go through it
//   - Store: persistence contract, implemented by SQLiteStore
//   - FaultRecordSource: read-only access to fault history aggregates
//
// # Usage
//
//	store := device.NewSQLiteStore(db)
//	faults := device.NewSQLiteFaultSource(db)
//	svc := device.NewService(store, faults, auditSink, notifySink)
//	svc.SetLogger(log)
//
//	d := &device.Device{
//	    DeviceID:   "ATM-0001",
//	    DeviceName: "Lobby ATM",
//	    DeviceType: "ATM",
//	    Location:   "Main St lobby",
//	    Branch:     "Main St",
//	}
//	if err := svc.AddDevice(ctx, d); err != nil {
//	    return err
//	}
//
//	// Transitions are validated, audited and serialized per device.
//	err := svc.ChangeStatus(ctx, d.ID, "online", "installation complete")
//
// Status writes are serialized per device ID, so concurrent fault reports
// for the same device produce exactly one transition and one notification.
//
// Errors are classified through the package sentinels (ErrValidation,
// ErrNotFound, ErrConflict, ErrStore) and checked with errors.Is.
package device
