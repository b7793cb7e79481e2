package schema

import (
	"fmt"
	"maps"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// Logger defines the logging interface used by the Resolver.
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

// DeviceLookup resolves a device name to the id the entity registry assigned.
type DeviceLookup interface {
	DeviceID(name string) (string, error)
}

// SpecialBuilder builds configs for an ERD that has no ordinary field schema.
// def is nil when the definitions document does not describe the ERD.
type SpecialBuilder func(deviceName, deviceID string, def *appliance.Definition) []Config

// Resolver builds entity configurations from ERD definitions.
type Resolver struct {
	defs    *appliance.Definitions
	devices DeviceLookup
	special map[erd.ID]SpecialBuilder
	logger  Logger
}

// NewResolver creates a Resolver with the default special ERD builders.
func NewResolver(defs *appliance.Definitions, devices DeviceLookup) *Resolver {
	return &Resolver{
		defs:    defs,
		devices: devices,
		special: DefaultSpecialERDs(),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// SetSpecialERDs replaces the special ERD builder map.
func (r *Resolver) SetSpecialERDs(special map[erd.ID]SpecialBuilder) {
	r.special = maps.Clone(special)
}

// IsSpecial reports whether id is resolved by a special builder.
func (r *Resolver) IsSpecial(id erd.ID) bool {
	_, ok := r.special[id]
	return ok
}

// SpecialConfigs builds the configs for a special ERD.
func (r *Resolver) SpecialConfigs(id erd.ID, deviceName string) ([]Config, error) {
	build, ok := r.special[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSpecial, id)
	}
	deviceID, err := r.devices.DeviceID(deviceName)
	if err != nil {
		return nil, err
	}

	var def *appliance.Definition
	if d, ok := r.defs.Lookup(id); ok {
		def = &d
	}
	return build(deviceName, deviceID, def), nil
}

// EntityConfigs resolves every field of id into a Config.
//
// The status half of a status/request pair yields no configs; the pair is
// represented once under its request id. An ERD missing from the
// definitions document is logged and yields no configs. A field whose shape
// maps to no kind fails the whole ERD with ErrUnsupportedField.
func (r *Resolver) EntityConfigs(id erd.ID, deviceName string) ([]Config, error) {
	pair, paired := r.defs.StatusPair(id)
	if paired && id == pair.Status {
		return nil, nil
	}

	def, ok := r.defs.Lookup(id)
	if !ok {
		r.logger.Error("could not find ERD definition", "erd", id.String(), "device", deviceName)
		return nil, nil
	}

	deviceID, err := r.devices.DeviceID(deviceName)
	if err != nil {
		return nil, err
	}

	readable := def.Readable()
	if paired {
		if status, ok := r.defs.Lookup(pair.Status); ok && status.Readable() {
			readable = true
		}
	}

	configs := make([]Config, 0, len(def.Data))
	for _, f := range def.Data {
		kind, err := Classify(f, readable, def.Writable())
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", id, err)
		}

		cfg := r.baseConfig(deviceName, deviceID, def, f, kind)
		if paired {
			cfg.StatusERD = pair.Status
			cfg.HasStatus = true
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// UniqueID returns the entity unique id for a field: device_erd_field with
// spaces replaced by underscores.
func UniqueID(deviceName string, id erd.ID, fieldName string) string {
	return strings.ReplaceAll(fmt.Sprintf("%s_%s_%s", deviceName, id.Hex4(), fieldName), " ", "_")
}

func (r *Resolver) baseConfig(deviceName, deviceID string, def appliance.Definition, f appliance.Field, kind Kind) Config {
	cfg := Config{
		UniqueID:   UniqueID(deviceName, def.ID, f.Name),
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Name:       def.Name + ": " + f.Name,
		Kind:       kind,
		ERD:        def.ID,
		Span:       f.Span(),
		FieldType:  f.Type,
		Decoding:   decodingFor(f),
		Writable:   def.Writable(),
		Scale:      1,
	}

	if cfg.Decoding == DecodeEnum {
		cfg.Options = maps.Clone(f.Values)
	}

	switch kind {
	case KindNumber:
		cfg.Name = stripScale(cfg.Name)
		cfg.DeviceClass = numberDeviceClass(f)
		cfg.Unit = Unit(f, def.Description)
		cfg.Scale = Scale(f, def.Description)
		lo, hi := Bounds(f)
		cfg.Min = lo / float64(cfg.Scale)
		cfg.Max = hi / float64(cfg.Scale)
	case KindSensor:
		cfg.Name = stripScale(cfg.Name)
		cfg.DeviceClass = sensorDeviceClass(f)
		cfg.StateClass = stateClass(f)
		if cfg.Decoding == DecodeUnsigned || cfg.Decoding == DecodeSigned {
			cfg.Unit = Unit(f, def.Description)
			cfg.Scale = Scale(f, def.Description)
		}
	}
	return cfg
}
