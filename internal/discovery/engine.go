package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/geappliances-bridge/internal/schema"
)

// Logger defines the logging interface used by the Engine.
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

// Registry creates devices and registers entities.
// This interface is satisfied by *entity.Registry.
type Registry interface {
	// CreateDevice returns the id to use for a newly seen device.
	CreateDevice(ctx context.Context, deviceName string) (string, error)

	// AddEntity builds a live entity from cfg. Registering an existing
	// unique id is a no-op.
	AddEntity(ctx context.Context, cfg schema.Config, deviceName string) error
}

// Resolver turns ERD definitions into entity configurations.
// This interface is satisfied by *schema.Resolver.
type Resolver interface {
	IsSpecial(id erd.ID) bool
	SpecialConfigs(id erd.ID, deviceName string) ([]schema.Config, error)
	EntityConfigs(id erd.ID, deviceName string) ([]schema.Config, error)
}

// MetaCoordinator applies meta-ERD transforms.
// This interface is satisfied by *metaerd.Coordinator. It is optional.
type MetaCoordinator interface {
	IsMetaERD(id erd.ID) bool
	ApplyTransformsForMetaERD(deviceName string, metaERD erd.ID) error
	ApplyTransformsToEntity(deviceName, uniqueID string) error
}

// Message is one inbound observation. A message without a value only
// announces the device.
type Message struct {
	Device   string
	ERD      erd.ID
	Value    []byte
	HasValue bool
}

// Options holds the collaborators of an Engine.
type Options struct {
	Store    *erd.Store
	Resolver Resolver
	Registry Registry
	Manifest *appliance.Manifest

	// Meta is optional; without it no derived attributes are applied.
	Meta MetaCoordinator

	Metrics *metrics.Metrics
	Logger  Logger
}

// Engine processes inbound messages.
//
// Thread Safety: HandleMessage is safe for concurrent use. Messages for the
// same device are serialised.
type Engine struct {
	store    *erd.Store
	resolver Resolver
	registry Registry
	manifest *appliance.Manifest
	meta     MetaCoordinator
	metrics  *metrics.Metrics
	logger   Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// activation records, per device, the ERDs each announcement slot
	// activated. Guarded by the device lock.
	activation map[string]map[erd.ID][]erd.ID

	// built records, per device, the ERDs whose entities have been built.
	// A request ERD never gains subscribers of its own, so subscriber
	// counts alone cannot tell. Guarded by the device lock.
	built map[string]map[erd.ID]bool
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Resolver == nil || opts.Registry == nil || opts.Manifest == nil {
		return nil, errors.New("discovery: store, resolver, registry and manifest are required")
	}

	e := &Engine{
		store:      opts.Store,
		resolver:   opts.Resolver,
		registry:   opts.Registry,
		manifest:   opts.Manifest,
		meta:       opts.Meta,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		locks:      make(map[string]*sync.Mutex),
		activation: make(map[string]map[erd.ID][]erd.ID),
		built:      make(map[string]map[erd.ID]bool),
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e, nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetMetaCoordinator sets the meta coordinator. The coordinator usually
// needs the entity registry, which in turn is built after the engine's
// store, so it is wired after construction.
func (e *Engine) SetMetaCoordinator(meta MetaCoordinator) {
	e.meta = meta
}

func (e *Engine) deviceLock(name string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[name] = mu
	}
	return mu
}

// WithDevice runs fn while holding the lock HandleMessage takes for
// deviceName, so callers outside the inbound path can change the device's
// state without interleaving with message processing.
func (e *Engine) WithDevice(deviceName string, fn func() error) error {
	mu := e.deviceLock(deviceName)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// HandleMessage processes one inbound message to completion.
//
// The device is created on first contact. A supported ERD is written to the
// store, and meta transforms are applied when it is a meta ERD. An
// announcement ERD is resolved against the manifest. Any other ERD is
// recorded as unsupported with its value.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) error {
	if msg.Device == "" {
		e.metrics.MessageReceived("error")
		return ErrEmptyDeviceName
	}

	mu := e.deviceLock(msg.Device)
	mu.Lock()
	defer mu.Unlock()

	if err := e.ensureDevice(ctx, msg.Device); err != nil {
		e.metrics.MessageReceived("error")
		return err
	}

	if !msg.HasValue {
		e.metrics.MessageReceived("presence")
		return nil
	}

	if e.store.IsSupported(msg.Device, msg.ERD) {
		e.metrics.MessageReceived("supported")
		return e.writeSupported(msg)
	}

	if msg.ERD.IsAPI() {
		e.metrics.MessageReceived("announcement")
		return e.processAnnouncement(ctx, msg)
	}

	e.metrics.MessageReceived("unsupported")
	if err := e.store.AddUnsupported(msg.Device, msg.ERD, msg.Value); err != nil {
		return fmt.Errorf("recording unsupported %s: %w", msg.ERD, err)
	}
	return nil
}

func (e *Engine) ensureDevice(ctx context.Context, name string) error {
	if e.store.DeviceExists(name) {
		return nil
	}

	id, err := e.registry.CreateDevice(ctx, name)
	if err != nil {
		return fmt.Errorf("creating device %s: %w", name, err)
	}
	if e.store.AddDevice(name, id) {
		e.metrics.DeviceAdded()
		e.logger.Info("device added", "device", name, "device_id", id)
	}
	return nil
}

func (e *Engine) writeSupported(msg Message) error {
	if err := e.store.Write(msg.Device, msg.ERD, msg.Value); err != nil {
		return fmt.Errorf("writing %s: %w", msg.ERD, err)
	}
	if e.meta != nil && e.meta.IsMetaERD(msg.ERD) {
		if err := e.meta.ApplyTransformsForMetaERD(msg.Device, msg.ERD); err != nil {
			return fmt.Errorf("applying meta ERD %s: %w", msg.ERD, err)
		}
	}
	return nil
}

// processAnnouncement resolves an announcement and moves the slot from what
// it activated before to what the new announcement activates.
func (e *Engine) processAnnouncement(ctx context.Context, msg Message) error {
	ann, err := appliance.DecodeAnnouncement(msg.ERD, msg.Value)
	if err != nil {
		e.metrics.ManifestResult("invalid")
		e.logger.Error("invalid appliance API announcement",
			"device", msg.Device, "erd", msg.ERD.String(), "error", err)
		return err
	}

	version, ok := e.manifest.Resolve(ann)
	if !ok {
		e.metrics.ManifestResult("unknown")
		featureType, v := ann.Key()
		e.logger.Error("invalid appliance API version",
			"device", msg.Device, "erd", msg.ERD.String(),
			"feature_type", featureType, "version", v)
		return fmt.Errorf("%w: %s version %s", ErrUnknownAPIVersion, featureType, v)
	}

	// Recorded before set-up so the meta coordinator can find the active
	// version while entities are registered.
	if err := e.store.AddUnsupported(msg.Device, msg.ERD, msg.Value); err != nil {
		return fmt.Errorf("recording announcement %s: %w", msg.ERD, err)
	}

	next := version.Activated(ann.Mask)
	e.demoteStale(msg.Device, msg.ERD, next)
	e.setActivation(msg.Device, msg.ERD, next)

	e.metrics.ManifestResult("applied")
	e.logger.Info("appliance API announced",
		"device", msg.Device,
		"erd", msg.ERD.String(),
		"version", ann.Version,
		"mask", fmt.Sprintf("0x%08x", ann.Mask),
		"erds", len(next),
	)
	return e.SetUpERDs(ctx, next, msg.Device)
}

// demoteStale demotes what slot activated before that next no longer
// needs, keeping ERDs another slot of the device still activates.
func (e *Engine) demoteStale(deviceName string, slot erd.ID, next []erd.ID) {
	slots := e.activation[deviceName]
	demoted := 0
	for _, id := range slots[slot] {
		if slices.Contains(next, id) || e.activeInOtherSlot(deviceName, slot, id) {
			continue
		}
		if err := e.store.MoveToUnsupported(deviceName, id); err != nil {
			e.logger.Warn("demoting ERD failed", "device", deviceName, "erd", id.String(), "error", err)
			continue
		}
		demoted++
		e.logger.Debug("ERD demoted", "device", deviceName, "erd", id.String())
	}
	e.metrics.Demoted(demoted)
}

func (e *Engine) activeInOtherSlot(deviceName string, slot, id erd.ID) bool {
	for other, ids := range e.activation[deviceName] {
		if other != slot && slices.Contains(ids, id) {
			return true
		}
	}
	return false
}

func (e *Engine) setActivation(deviceName string, slot erd.ID, ids []erd.ID) {
	slots, ok := e.activation[deviceName]
	if !ok {
		slots = make(map[erd.ID][]erd.ID)
		e.activation[deviceName] = slots
	}
	slots[slot] = slices.Clone(ids)
}

// Activated returns the ERDs the announcement slot last activated for the
// device, or nil.
func (e *Engine) Activated(deviceName string, slot erd.ID) []erd.ID {
	mu := e.deviceLock(deviceName)
	mu.Lock()
	defer mu.Unlock()
	return slices.Clone(e.activation[deviceName][slot])
}
