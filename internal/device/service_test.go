package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingAudit captures audit entries and can be told to fail.
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingAudit) all() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.entries...)
}

// recordingNotify captures fault notifications.
type recordingNotify struct {
	mu    sync.Mutex
	calls []faultCall
}

type faultCall struct {
	device Device
	reason string
}

func (r *recordingNotify) NotifyFault(_ context.Context, d Device, reason string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, faultCall{device: d, reason: reason})
}

func (r *recordingNotify) all() []faultCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]faultCall(nil), r.calls...)
}

// newTestService wires a service over a fresh in-memory store with
// recording sinks.
func newTestService(t *testing.T) (*Service, *recordingAudit, *recordingNotify) {
	t.Helper()
	db := setupTestDB(t)
	audit := &recordingAudit{}
	notify := &recordingNotify{}
	svc := NewService(NewSQLiteStore(db), NewSQLiteFaultSource(db), audit, notify)
	return svc, audit, notify
}

// addTestDevice adds a device through the service and returns its ID.
func addTestDevice(t *testing.T, svc *Service, deviceID string) int64 {
	t.Helper()
	d := testDevice(deviceID, "Device "+deviceID)
	if err := svc.AddDevice(context.Background(), d); err != nil {
		t.Fatalf("AddDevice(%s) error = %v", deviceID, err)
	}
	return d.ID
}

func TestServiceAddDevice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	t.Run("success fills id and timestamps", func(t *testing.T) {
		d := testDevice("ATM-0001", "Lobby ATM")
		d.CreateTime = time.Time{}
		d.UpdateTime = time.Time{}
		if err := svc.AddDevice(ctx, d); err != nil {
			t.Fatalf("AddDevice() error = %v", err)
		}
		if d.ID == 0 {
			t.Error("AddDevice() did not set ID")
		}
		if d.CreateTime.IsZero() || d.UpdateTime.IsZero() {
			t.Error("AddDevice() did not set timestamps")
		}
	})

	t.Run("defaults status to OFFLINE", func(t *testing.T) {
		d := testDevice("ATM-0002", "Drive-up ATM")
		d.Status = ""
		if err := svc.AddDevice(ctx, d); err != nil {
			t.Fatalf("AddDevice() error = %v", err)
		}
		if d.Status != StatusOffline {
			t.Errorf("Status = %q, want %q", d.Status, StatusOffline)
		}
	})

	t.Run("canonicalizes lower-case status", func(t *testing.T) {
		d := testDevice("ATM-0003", "Branch ATM")
		d.Status = "online"
		if err := svc.AddDevice(ctx, d); err != nil {
			t.Fatalf("AddDevice() error = %v", err)
		}
		if d.Status != StatusOnline {
			t.Errorf("Status = %q, want %q", d.Status, StatusOnline)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		cases := map[string]*Device{
			"no device_id":   {DeviceName: "x", DeviceType: "ATM", Location: "y"},
			"no device_name": {DeviceID: "a", DeviceType: "ATM", Location: "y"},
			"no device_type": {DeviceID: "a", DeviceName: "x", Location: "y"},
			"no location":    {DeviceID: "a", DeviceName: "x", DeviceType: "ATM"},
		}
		for name, d := range cases {
			if err := svc.AddDevice(ctx, d); !errors.Is(err, ErrValidation) {
				t.Errorf("%s: error = %v, want ErrValidation", name, err)
			}
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		d := testDevice("ATM-0004", "Bad Status")
		d.Status = "BROKEN"
		if err := svc.AddDevice(ctx, d); !errors.Is(err, ErrValidation) {
			t.Errorf("AddDevice() error = %v, want ErrValidation", err)
		}
	})

	t.Run("duplicate device_id", func(t *testing.T) {
		d := testDevice("ATM-0001", "Impostor")
		if err := svc.AddDevice(ctx, d); !errors.Is(err, ErrConflict) {
			t.Errorf("AddDevice() error = %v, want ErrConflict", err)
		}
	})
}

func TestServiceChangeStatus(t *testing.T) {
	svc, audit, _ := newTestService(t)
	ctx := context.Background()
	id := addTestDevice(t, svc, "ATM-0001")

	t.Run("case-insensitive transition with audit", func(t *testing.T) {
		if err := svc.ChangeStatus(ctx, id, "online", "installed"); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}

		got, err := svc.GetDevice(ctx, id)
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if got.Status != StatusOnline {
			t.Errorf("Status = %q, want %q", got.Status, StatusOnline)
		}

		entries := audit.all()
		if len(entries) != 1 {
			t.Fatalf("audit entries = %d, want 1", len(entries))
		}
		e := entries[0]
		if e.DeviceID != "ATM-0001" || e.OldStatus != StatusOffline || e.NewStatus != StatusOnline {
			t.Errorf("audit entry = %+v", e)
		}
		if e.Reason != "installed" {
			t.Errorf("audit reason = %q, want %q", e.Reason, "installed")
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		err := svc.ChangeStatus(ctx, id, "EXPLODED", "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ChangeStatus() error = %v, want ErrValidation", err)
		}
	})

	t.Run("missing device", func(t *testing.T) {
		err := svc.ChangeStatus(ctx, 9999, "ONLINE", "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ChangeStatus() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("audit failure fails the change", func(t *testing.T) {
		audit.err = errors.New("audit store down")
		defer func() { audit.err = nil }()

		err := svc.ChangeStatus(ctx, id, "MAINTENANCE", "quarterly service")
		if err == nil {
			t.Fatal("ChangeStatus() succeeded despite audit failure")
		}
	})
}

func TestServiceMarkAsFault(t *testing.T) {
	svc, audit, notify := newTestService(t)
	ctx := context.Background()
	id := addTestDevice(t, svc, "ATM-0001")
	if err := svc.ChangeStatus(ctx, id, "ONLINE", "installed"); err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	auditsBefore := len(audit.all())

	t.Run("transition notifies exactly once", func(t *testing.T) {
		changed, err := svc.MarkAsFault(ctx, id, "cash dispenser jam")
		if err != nil {
			t.Fatalf("MarkAsFault() error = %v", err)
		}
		if !changed {
			t.Error("MarkAsFault() = false, want true")
		}

		got, _ := svc.GetDevice(ctx, id)
		if got.Status != StatusFault {
			t.Errorf("Status = %q, want %q", got.Status, StatusFault)
		}

		calls := notify.all()
		if len(calls) != 1 {
			t.Fatalf("notifications = %d, want 1", len(calls))
		}
		if calls[0].reason != "cash dispenser jam" {
			t.Errorf("notification reason = %q", calls[0].reason)
		}
		// The notification carries the pre-transition snapshot.
		if calls[0].device.Status != StatusOnline {
			t.Errorf("snapshot status = %q, want %q", calls[0].device.Status, StatusOnline)
		}

		if got := len(audit.all()); got != auditsBefore+1 {
			t.Errorf("audit entries = %d, want %d", got, auditsBefore+1)
		}
	})

	t.Run("already faulted is a no-op", func(t *testing.T) {
		auditCount := len(audit.all())
		notifyCount := len(notify.all())

		changed, err := svc.MarkAsFault(ctx, id, "still broken")
		if err != nil {
			t.Fatalf("MarkAsFault() error = %v", err)
		}
		if changed {
			t.Error("MarkAsFault() = true on already-faulted device, want false")
		}
		if len(audit.all()) != auditCount {
			t.Error("no-op fault wrote an audit entry")
		}
		if len(notify.all()) != notifyCount {
			t.Error("no-op fault sent a notification")
		}
	})

	t.Run("empty reason", func(t *testing.T) {
		_, err := svc.MarkAsFault(ctx, id, "   ")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("MarkAsFault() error = %v, want ErrValidation", err)
		}
	})

	t.Run("missing device", func(t *testing.T) {
		_, err := svc.MarkAsFault(ctx, 9999, "ghost fault")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkAsFault() error = %v, want ErrNotFound", err)
		}
	})
}

func TestServiceMarkAsFaultConcurrent(t *testing.T) {
	svc, _, notify := newTestService(t)
	ctx := context.Background()
	id := addTestDevice(t, svc, "ATM-0001")

	const reporters = 8
	var wg sync.WaitGroup
	changes := make(chan bool, reporters)
	for i := 0; i < reporters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := svc.MarkAsFault(ctx, id, "link down")
			if err != nil {
				t.Errorf("MarkAsFault() error = %v", err)
				return
			}
			changes <- changed
		}()
	}
	wg.Wait()
	close(changes)

	trueCount := 0
	for c := range changes {
		if c {
			trueCount++
		}
	}
	if trueCount != 1 {
		t.Errorf("%d reporters won the transition, want exactly 1", trueCount)
	}
	if got := len(notify.all()); got != 1 {
		t.Errorf("notifications = %d, want exactly 1", got)
	}
}

func TestServiceUpdateDevice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := addTestDevice(t, svc, "ATM-0001")

	t.Run("partial update", func(t *testing.T) {
		name := "Renamed ATM"
		got, err := svc.UpdateDevice(ctx, id, Patch{DeviceName: &name})
		if err != nil {
			t.Fatalf("UpdateDevice() error = %v", err)
		}
		if got.DeviceName != name {
			t.Errorf("DeviceName = %q, want %q", got.DeviceName, name)
		}
		if got.DeviceID != "ATM-0001" {
			t.Errorf("DeviceID changed to %q", got.DeviceID)
		}
	})

	t.Run("same device_id allowed", func(t *testing.T) {
		same := "ATM-0001"
		if _, err := svc.UpdateDevice(ctx, id, Patch{DeviceID: &same}); err != nil {
			t.Errorf("UpdateDevice() with unchanged device_id error = %v", err)
		}
	})

	t.Run("device_id immutable", func(t *testing.T) {
		other := "ATM-9999"
		_, err := svc.UpdateDevice(ctx, id, Patch{DeviceID: &other})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("UpdateDevice() error = %v, want ErrConflict", err)
		}
	})

	t.Run("status canonicalized", func(t *testing.T) {
		status := "maintenance"
		got, err := svc.UpdateDevice(ctx, id, Patch{Status: &status})
		if err != nil {
			t.Fatalf("UpdateDevice() error = %v", err)
		}
		if got.Status != StatusMaintenance {
			t.Errorf("Status = %q, want %q", got.Status, StatusMaintenance)
		}
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		status := "TELEPORTING"
		_, err := svc.UpdateDevice(ctx, id, Patch{Status: &status})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("UpdateDevice() error = %v, want ErrValidation", err)
		}
	})

	t.Run("missing device", func(t *testing.T) {
		name := "nobody"
		_, err := svc.UpdateDevice(ctx, 9999, Patch{DeviceName: &name})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateDevice() error = %v, want ErrNotFound", err)
		}
	})
}

func TestServiceDeleteDevice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := addTestDevice(t, svc, "ATM-0001")

	t.Run("online device refused", func(t *testing.T) {
		if err := svc.ChangeStatus(ctx, id, "ONLINE", "installed"); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		err := svc.DeleteDevice(ctx, id)
		if !errors.Is(err, ErrConflict) {
			t.Errorf("DeleteDevice() error = %v, want ErrConflict", err)
		}
	})

	t.Run("offline device deleted", func(t *testing.T) {
		if err := svc.ChangeStatus(ctx, id, "OFFLINE", "decommissioning"); err != nil {
			t.Fatalf("ChangeStatus() error = %v", err)
		}
		if err := svc.DeleteDevice(ctx, id); err != nil {
			t.Fatalf("DeleteDevice() error = %v", err)
		}
		_, err := svc.GetDevice(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetDevice() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing device", func(t *testing.T) {
		err := svc.DeleteDevice(ctx, 9999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteDevice() error = %v, want ErrNotFound", err)
		}
	})
}

func TestServiceListOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	addTestDevice(t, svc, "ATM-0001")
	id2 := addTestDevice(t, svc, "ATM-0002")
	if err := svc.ChangeStatus(ctx, id2, "ONLINE", ""); err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}

	t.Run("list all", func(t *testing.T) {
		all, err := svc.ListDevices(ctx)
		if err != nil {
			t.Fatalf("ListDevices() error = %v", err)
		}
		if len(all) != 2 {
			t.Errorf("ListDevices() = %d devices, want 2", len(all))
		}
	})

	t.Run("list by status canonicalizes", func(t *testing.T) {
		online, err := svc.ListByStatus(ctx, "online")
		if err != nil {
			t.Fatalf("ListByStatus() error = %v", err)
		}
		if len(online) != 1 || online[0].DeviceID != "ATM-0002" {
			t.Errorf("ListByStatus(online) = %v", online)
		}
	})

	t.Run("empty status yields empty list", func(t *testing.T) {
		got, err := svc.ListByStatus(ctx, "  ")
		if err != nil {
			t.Fatalf("ListByStatus() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListByStatus(empty) = %d devices, want 0", len(got))
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := svc.ListByStatus(ctx, "SLEEPING")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ListByStatus() error = %v, want ErrValidation", err)
		}
	})

	t.Run("empty branch yields empty list", func(t *testing.T) {
		got, err := svc.ListByBranch(ctx, "")
		if err != nil {
			t.Fatalf("ListByBranch() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListByBranch(empty) = %d devices, want 0", len(got))
		}
	})

	t.Run("get by device_id requires id", func(t *testing.T) {
		_, err := svc.GetDeviceByDeviceID(ctx, "")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("GetDeviceByDeviceID(empty) error = %v, want ErrValidation", err)
		}
	})
}
