// Package metaerd applies meta-ERD values to the entities they describe.
//
// A meta ERD carries metadata about other entities rather than telemetry:
// a number's bounds or unit, whether an entity is enabled, which options of
// a select are allowed. The Coordinator holds the meta-ERD table, works out
// which manifest version on a device declares a meta ERD, extracts the
// source field and hands the value to a Target.
//
// Transforms are plain setters, so re-applying the same value leaves the
// target unchanged.
package metaerd
