// Package discovery turns inbound appliance traffic into store state and
// entities.
//
// Every ERD value a device reports flows through Engine.HandleMessage. A
// value for a supported ERD is written to the store. A value for an
// appliance API announcement ERD (0x0092 for the common API, 0x0093-0x0097
// and 0x0109-0x010D for feature APIs) selects a manifest version whose
// required ERDs are promoted into the supported set and resolved into
// entities. Anything else is kept as unsupported.
//
// Each announcement ERD is a slot. When a slot announces a new version or
// mask, the ERDs it previously activated that the new announcement no
// longer needs are demoted, unless another slot of the same device still
// needs them.
//
// Messages for one device are processed one at a time; different devices
// proceed in parallel.
package discovery
