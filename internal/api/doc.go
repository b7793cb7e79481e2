// Package api serves the bridge's local HTTP API.
//
// The API is for inspection and manual control. It exposes:
//   - health of the MQTT link and the database
//   - Prometheus metrics on /metrics
//   - known devices and the supported/unsupported state of their ERDs
//   - registered entities with decoded values and derived attributes
//   - entity commands, which go through the same validation as any other
//     write and are published to the appliance
//
// A command is accepted once the write has been transmitted. The entity's
// state changes only when the appliance reports the new value back.
//
// The server follows the usual component lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
