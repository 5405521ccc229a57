package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oakline/fleetcore/internal/device"
	"github.com/oakline/fleetcore/internal/infrastructure/mqtt"
)

// Logger is the minimal logging interface the listener needs.
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

// Subscriber is the slice of the MQTT client the listener uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// FaultService resolves devices and records fault transitions.
type FaultService interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*device.Device, error)
	MarkAsFault(ctx context.Context, id int64, reason string) (bool, error)
}

// reportMessage is the payload branch monitors publish to
// fleetcore/report/fault/{device_id}. DeviceID is optional; when absent
// the trailing topic segment identifies the device.
type reportMessage struct {
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason"`
}

// FaultReportListener subscribes to fault reports from branch monitors
// and feeds them into the device service. Each valid report becomes a
// MarkAsFault call; reports for devices already in fault are ignored
// without a second transition.
type FaultReportListener struct {
	sub    Subscriber
	svc    FaultService
	qos    byte
	logger Logger

	ctx context.Context
}

// NewFaultReportListener creates a listener. Call Start to subscribe.
func NewFaultReportListener(sub Subscriber, svc FaultService, qos byte) *FaultReportListener {
	return &FaultReportListener{
		sub:    sub,
		svc:    svc,
		qos:    qos,
		logger: noopLogger{},
		ctx:    context.Background(),
	}
}

// SetLogger sets the logger for the listener.
func (l *FaultReportListener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to the fault report topic. The context bounds the
// service calls made from incoming reports.
func (l *FaultReportListener) Start(ctx context.Context) error {
	if ctx != nil {
		l.ctx = ctx
	}

	topic := mqtt.Topics{}.AllFaultReports()
	if err := l.sub.Subscribe(topic, l.qos, l.handleReport); err != nil {
		return fmt.Errorf("subscribing to fault reports: %w", err)
	}

	l.logger.Info("fault report listener started", "topic", topic)
	return nil
}

// Stop removes the fault report subscription.
func (l *FaultReportListener) Stop() {
	topic := mqtt.Topics{}.AllFaultReports()
	if err := l.sub.Unsubscribe(topic); err != nil {
		l.logger.Warn("failed to unsubscribe fault reports", "error", err)
	}
}

// handleReport processes a single incoming fault report.
func (l *FaultReportListener) handleReport(topic string, payload []byte) error {
	var msg reportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing fault report on %q: %w", topic, err)
	}

	deviceID := strings.TrimSpace(msg.DeviceID)
	if deviceID == "" {
		deviceID = mqtt.DeviceIDFromTopic(topic)
	}
	if deviceID == "" {
		return fmt.Errorf("fault report on %q carries no device id", topic)
	}

	reason := strings.TrimSpace(msg.Reason)
	if reason == "" {
		return fmt.Errorf("fault report for %q carries no reason", deviceID)
	}

	d, err := l.svc.GetDeviceByDeviceID(l.ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %q: %w", deviceID, err)
	}

	changed, err := l.svc.MarkAsFault(l.ctx, d.ID, reason)
	if err != nil {
		return fmt.Errorf("marking device %q as fault: %w", deviceID, err)
	}

	if changed {
		l.logger.Info("fault report applied",
			"device_id", deviceID,
			"reason", reason,
		)
	} else {
		l.logger.Debug("fault report ignored, device already in fault",
			"device_id", deviceID,
		)
	}

	return nil
}
