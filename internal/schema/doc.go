// Package schema turns ERD definitions into entity configurations.
//
// Each field of an ERD becomes one Config whose Kind is chosen from the
// field's shape and the ERD's declared operations. Numeric configs also get
// a unit, a scale factor, bounds, and device/state classes derived from the
// field and ERD names.
package schema
