package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateSink receives decoded entity states, e.g. the InfluxDB client.
type StateSink interface {
	WriteEntityState(device, uniqueID, kind string, value any)
}

// Registry holds every live entity, keyed by unique id.
type Registry struct {
	store *erd.Store
	repo  Repository

	mu       sync.RWMutex
	entities map[string]*Entity

	sink    StateSink
	metrics *metrics.Metrics
	logger  Logger
}

// NewRegistry creates a registry over store. repo may be nil, in which case
// device ids are not persisted.
func NewRegistry(store *erd.Store, repo Repository) *Registry {
	return &Registry{
		store:    store,
		repo:     repo,
		entities: make(map[string]*Entity),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStateSink sets where decoded state changes are recorded. Nil disables it.
func (r *Registry) SetStateSink(sink StateSink) {
	r.sink = sink
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// CreateDevice returns the id for deviceName, creating and persisting a new
// UUID the first time the name is seen.
func (r *Registry) CreateDevice(ctx context.Context, deviceName string) (string, error) {
	if r.repo == nil {
		return uuid.NewString(), nil
	}

	id, err := r.repo.DeviceID(ctx, deviceName)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return "", fmt.Errorf("looking up device %s: %w", deviceName, err)
	}

	id = uuid.NewString()
	if err := r.repo.CreateDevice(ctx, deviceName, id); err != nil {
		return "", fmt.Errorf("creating device %s: %w", deviceName, err)
	}
	r.logger.Info("device created", "device", deviceName, "device_id", id)
	return id, nil
}

// AddEntity builds a live entity from cfg and subscribes it to its state
// ERD. Registering a unique id that already exists is a no-op.
func (r *Registry) AddEntity(ctx context.Context, cfg schema.Config, deviceName string) error {
	r.mu.Lock()
	if _, ok := r.entities[cfg.UniqueID]; ok {
		r.mu.Unlock()
		r.logger.Debug("entity already registered", "unique_id", cfg.UniqueID)
		return nil
	}
	e := newEntity(cfg)
	r.entities[cfg.UniqueID] = e
	r.mu.Unlock()

	stateERD := cfg.StateERD()
	value, err := r.store.Read(deviceName, stateERD)
	if errors.Is(err, erd.ErrERDNotFound) {
		err = r.store.AddUnsupported(deviceName, stateERD, nil)
	}
	if err != nil {
		r.remove(cfg.UniqueID)
		return fmt.Errorf("registering %s: %w", cfg.UniqueID, err)
	}
	e.update(value)

	handle, err := r.store.Subscribe(deviceName, stateERD, func(v []byte) {
		e.update(v)
		r.record(e)
	})
	if err != nil {
		r.remove(cfg.UniqueID)
		return fmt.Errorf("subscribing %s: %w", cfg.UniqueID, err)
	}
	e.handle = handle

	if r.repo != nil {
		rec := Record{
			UniqueID:   cfg.UniqueID,
			DeviceName: deviceName,
			Kind:       string(cfg.Kind),
			ERD:        cfg.ERD.String(),
			Name:       cfg.Name,
		}
		if err := r.repo.SaveEntity(ctx, rec); err != nil {
			r.logger.Warn("persisting entity failed", "unique_id", cfg.UniqueID, "error", err)
		}
	}

	r.metrics.EntityRegistered(string(cfg.Kind))
	r.logger.Info("entity registered",
		"unique_id", cfg.UniqueID,
		"kind", string(cfg.Kind),
		"erd", cfg.ERD.String(),
	)
	return nil
}

// RemoveEntity unsubscribes and forgets the entity.
func (r *Registry) RemoveEntity(uniqueID string) error {
	e, err := r.entity(uniqueID)
	if err != nil {
		return err
	}
	if _, err := r.store.Unsubscribe(e.cfg.DeviceName, e.cfg.StateERD(), e.handle); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", uniqueID, err)
	}
	r.remove(uniqueID)
	return nil
}

func (r *Registry) remove(uniqueID string) {
	r.mu.Lock()
	delete(r.entities, uniqueID)
	r.mu.Unlock()
}

func (r *Registry) record(e *Entity) {
	if r.sink == nil {
		return
	}
	s := e.State()
	if s.Value != nil {
		r.sink.WriteEntityState(s.DeviceName, s.UniqueID, string(s.Kind), s.Value)
	}
}

func (r *Registry) entity(uniqueID string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[uniqueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, uniqueID)
	}
	return e, nil
}

// Get returns the state of one entity.
func (r *Registry) Get(uniqueID string) (State, error) {
	e, err := r.entity(uniqueID)
	if err != nil {
		return State{}, err
	}
	return e.State(), nil
}

// List returns the state of every entity of deviceName, or of every device
// when deviceName is empty, ordered by unique id.
func (r *Registry) List(deviceName string) []State {
	r.mu.RLock()
	list := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		if deviceName == "" || e.cfg.DeviceName == deviceName {
			list = append(list, e)
		}
	}
	r.mu.RUnlock()

	states := make([]State, len(list))
	for i, e := range list {
		states[i] = e.State()
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UniqueID < states[j].UniqueID })
	return states
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
