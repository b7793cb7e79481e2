// Package bridge connects the MQTT broker to the discovery engine.
//
// Inbound, it subscribes to the appliance namespace and turns presence and
// ERD value topics into discovery messages. Outbound, it implements the ERD
// store's transport by publishing hex payloads on ERD write topics.
package bridge
