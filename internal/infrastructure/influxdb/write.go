package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStatusChange records a device status transition.
//
// Each transition becomes a point in the "status_changes" measurement,
// tagged by device and branch so dashboards can break down churn per site.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Business identifier for the device (e.g., "ATM-0001")
//   - branch: Branch the device is installed at (may be empty)
//   - oldStatus: Status before the transition
//   - newStatus: Status after the transition
func (c *Client) WriteStatusChange(deviceID, branch, oldStatus, newStatus string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"status_changes",
		map[string]string{
			"device_id":  deviceID,
			"branch":     branch,
			"new_status": newStatus,
		},
		map[string]interface{}{
			"old_status": oldStatus,
			"count":      1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFaultEvent records a device entering the fault state.
//
// Kept separate from WriteStatusChange so fault frequency can be
// queried without filtering the full transition stream.
//
// Parameters:
//   - deviceID: Business identifier for the device
//   - branch: Branch the device is installed at (may be empty)
//   - reason: Operator or monitor supplied fault description
func (c *Client) WriteFaultEvent(deviceID, branch, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"fault_events",
		map[string]string{
			"device_id": deviceID,
			"branch":    branch,
		},
		map[string]interface{}{
			"reason": reason,
			"count":  1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFleetGauge records a point-in-time fleet availability snapshot.
//
// Written by the periodic reporter so availability can be graphed over
// time rather than only observed live.
//
// Parameters:
//   - total: Total number of registered devices
//   - online: Number of devices currently online
//   - onlineRatio: online/total as a fraction in [0, 1]
func (c *Client) WriteFleetGauge(total, online int, onlineRatio float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"fleet_gauge",
		map[string]string{},
		map[string]interface{}{
			"total":        total,
			"online":       online,
			"online_ratio": onlineRatio,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "fleetcore-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., backfilled data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
