// Package entity is the runtime side of resolved entity configurations.
//
// The Registry turns each schema.Config into a live Entity: it subscribes
// to the entity's state ERD in the erd.Store, keeps the derived attributes
// that meta ERDs control (bounds, unit, enablement, allowed options) and
// validates commands before they go out through Store.PublishOutbound.
//
// # Device identity
//
// CreateDevice assigns each appliance a stable id. With a Repository the
// id survives restarts (SQLite, see SQLiteRepository); without one a fresh
// UUID is issued per process.
//
// # Derived attributes
//
// The Registry implements metaerd.Target. Each derived attribute belongs to
// one entity. Disabling an entity hides its value and rejects commands for
// it; the ERD and any sibling entities on it are untouched.
//
// # Thread safety
//
// All Registry and Entity methods are safe for concurrent use. Store
// subscribers run synchronously inside Store.Write, so state updates only
// take the entity's own lock.
package entity
