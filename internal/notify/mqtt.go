// Package notify publishes fleet alert messages over MQTT.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oakline/fleetcore/internal/device"
	"github.com/oakline/fleetcore/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client used for notifications.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger interface for dependency injection.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// faultMessage is the JSON payload published for a fault alert.
type faultMessage struct {
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name"`
	DeviceType  string    `json:"device_type"`
	Branch      string    `json:"branch,omitempty"`
	Location    string    `json:"location"`
	PriorStatus string    `json:"prior_status"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// FaultPublisher raises fault alerts on the MQTT bus. It implements the
// device package's notification sink.
//
// Delivery is best-effort: publish failures are logged, never returned,
// so a broker outage cannot block fault marking.
type FaultPublisher struct {
	pub    Publisher
	logger Logger
}

// NewFaultPublisher creates a fault alert publisher.
func NewFaultPublisher(pub Publisher) *FaultPublisher {
	return &FaultPublisher{
		pub:    pub,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for publish outcomes.
func (f *FaultPublisher) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// NotifyFault publishes a fault alert for the given device snapshot.
// The snapshot carries the device's state before the FAULT transition.
func (f *FaultPublisher) NotifyFault(_ context.Context, d device.Device, reason string, at time.Time) {
	msg := faultMessage{
		DeviceID:    d.DeviceID,
		DeviceName:  d.DeviceName,
		DeviceType:  d.DeviceType,
		Branch:      d.Branch,
		Location:    d.Location,
		PriorStatus: string(d.Status),
		Reason:      reason,
		At:          at,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("marshalling fault alert", "device_id", d.DeviceID, "error", err)
		return
	}

	topic := mqtt.Topics{}.FaultAlert(d.DeviceID)
	if err := f.pub.Publish(topic, payload, 1, false); err != nil {
		f.logger.Error("publishing fault alert",
			"device_id", d.DeviceID,
			"topic", topic,
			"error", err,
		)
		return
	}

	f.logger.Info("fault alert published", "device_id", d.DeviceID, "topic", topic)
}
