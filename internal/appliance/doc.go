// Package appliance loads the static documents that describe GE appliances:
// the ERD definitions (field layout of every register), the appliance API
// manifest (which ERDs each API version requires), and the meta-ERD table
// (which registers carry bounds, units and allowables for other entities).
//
// The documents are read once at startup and are read-only afterwards.
package appliance
