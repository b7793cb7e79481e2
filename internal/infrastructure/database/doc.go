// Package database opens the bridge's SQLite file and keeps its schema
// current.
//
// The bridge persists only identity: the id assigned to each appliance and
// the entities registered for it, so that restarts keep stable ids. ERD
// values are never stored; they are rebuilt from appliance traffic.
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// with an optional matching .down.sql. The migrations package embeds them
// and registers them with SetMigrations at init time. Each migration runs
// in its own transaction and is recorded in schema_migrations.
package database
