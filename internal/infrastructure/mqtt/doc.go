// Package mqtt provides MQTT client connectivity for FleetCore.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// FleetCore uses MQTT as the message bus connecting the core service to
// branch-side monitoring agents and operations dashboards. The broker
// (Mosquitto) decouples the core from the agents reporting device faults.
//
//	FleetCore ↔ MQTT Broker ↔ Branch monitors / dashboards
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to inbound fault reports
//	err = client.Subscribe(mqtt.Topics{}.AllFaultReports(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a fault alert
//	topic := mqtt.Topics{}.FaultAlert("ATM-0001")
//	client.Publish(topic, []byte(`{"reason":"dispenser jam"}`), 1, false)
package mqtt
