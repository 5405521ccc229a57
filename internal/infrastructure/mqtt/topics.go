package mqtt

import "fmt"

// Topic prefixes for the FleetCore MQTT hierarchy.
//
// All topics use the flat scheme: fleetcore/{category}/...
const (
	// TopicPrefix is the base for all FleetCore topics.
	TopicPrefix = "fleetcore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fleetcore/system"
)

// Topics provides builders for FleetCore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	alertTopic := topics.FaultAlert("ATM-0001")
//	// Returns: "fleetcore/alert/fault/ATM-0001"
type Topics struct{}

// FaultAlert returns the topic for outbound fault alerts for a device.
//
// Example: fleetcore/alert/fault/ATM-0001
func (Topics) FaultAlert(deviceID string) string {
	return fmt.Sprintf("%s/alert/fault/%s", TopicPrefix, deviceID)
}

// FaultReport returns the topic on which external monitors report a
// device fault.
//
// Example: fleetcore/report/fault/ATM-0001
func (Topics) FaultReport(deviceID string) string {
	return fmt.Sprintf("%s/report/fault/%s", TopicPrefix, deviceID)
}

// DeviceStatus returns the canonical status topic for a device.
//
// Example: fleetcore/device/ATM-0001/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefix, deviceID)
}

// FleetStatus returns the topic carrying periodic fleet health summaries.
// Published retained so dashboards get the latest summary on subscribe.
//
// Example: fleetcore/fleet/status
func (Topics) FleetStatus() string {
	return fmt.Sprintf("%s/fleet/status", TopicPrefix)
}

// SystemStatus returns the service online/offline status topic.
//
// Example: fleetcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllFaultReports returns a pattern matching fault reports for any device.
//
// Pattern: fleetcore/report/fault/+
func (Topics) AllFaultReports() string {
	return fmt.Sprintf("%s/report/fault/+", TopicPrefix)
}

// AllFaultAlerts returns a pattern matching fault alerts for any device.
//
// Pattern: fleetcore/alert/fault/+
func (Topics) AllFaultAlerts() string {
	return fmt.Sprintf("%s/alert/fault/+", TopicPrefix)
}

// AllTopics returns a pattern matching every FleetCore topic.
//
// Pattern: fleetcore/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}

// DeviceIDFromTopic extracts the trailing device identifier from a
// per-device topic such as a fault report. Returns "" if the topic has
// no device segment.
func DeviceIDFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return ""
}
