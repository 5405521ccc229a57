// Package ingest bridges external fault reports into the device service.
//
// Branch monitors publish fault reports to fleetcore/report/fault/{device_id}.
// The listener subscribes to that topic, resolves the reported device and
// records the fault transition through the device service, which in turn
// audits the change and raises the outbound fault alert.
//
// # Usage
//
//	listener := ingest.NewFaultReportListener(mqttClient, svc, byte(cfg.MQTT.QoS))
//	listener.SetLogger(log)
//	if err := listener.Start(ctx); err != nil {
//	    return err
//	}
//	defer listener.Stop()
//
// Reports are validated before reaching the service: malformed payloads,
// missing device identifiers and empty reasons are rejected with an error,
// which the MQTT layer logs.
package ingest
