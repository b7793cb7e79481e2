package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists device ids and the entities registered for them.
type Repository interface {
	// DeviceID returns the id assigned to deviceName.
	// Returns ErrDeviceNotFound if the name has never been stored.
	DeviceID(ctx context.Context, deviceName string) (string, error)

	// CreateDevice stores the id for deviceName.
	// Returns ErrDeviceExists if the name is already stored.
	CreateDevice(ctx context.Context, deviceName, id string) error

	// SaveEntity inserts or replaces an entity record.
	SaveEntity(ctx context.Context, rec Record) error

	// ListEntities returns the records for deviceName ordered by unique id.
	ListEntities(ctx context.Context, deviceName string) ([]Record, error)
}

// Record is the persisted form of an entity.
type Record struct {
	UniqueID   string
	DeviceName string
	Kind       string
	ERD        string
	Name       string
	CreatedAt  time.Time
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open connection whose
// schema has been migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// DeviceID returns the id assigned to deviceName.
func (r *SQLiteRepository) DeviceID(ctx context.Context, deviceName string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM devices WHERE name = ?", deviceName).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrDeviceNotFound
		}
		return "", fmt.Errorf("querying device id: %w", err)
	}
	return id, nil
}

// CreateDevice stores the id for deviceName.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, deviceName, id string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO devices (name, id, created_at) VALUES (?, ?, ?)",
		deviceName, id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// SaveEntity inserts or replaces an entity record. created_at is kept on replace.
func (r *SQLiteRepository) SaveEntity(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO entities (unique_id, device_name, kind, erd, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_id) DO UPDATE SET
			device_name = excluded.device_name,
			kind = excluded.kind,
			erd = excluded.erd,
			name = excluded.name`

	_, err := r.db.ExecContext(ctx, query,
		rec.UniqueID, rec.DeviceName, rec.Kind, rec.ERD, rec.Name,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}
	return nil
}

// ListEntities returns the records for deviceName ordered by unique id.
func (r *SQLiteRepository) ListEntities(ctx context.Context, deviceName string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT unique_id, device_name, kind, erd, name, created_at
		FROM entities
		WHERE device_name = ?
		ORDER BY unique_id`, deviceName)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(&rec.UniqueID, &rec.DeviceName, &rec.Kind, &rec.ERD, &rec.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by SaveEntity
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return records, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
